package telemetry

import (
	"strings"
	"sync"
)

type Severity string

const (
	SeverityBroken  Severity = "broken"
	SeverityWarning Severity = "warning"
	SeverityDebug   Severity = "debug"
	SeverityCount   Severity = "count"
)

type Report struct {
	Severity Severity
	ID       string
	Params   []any
}

// Recorder is an API that keeps every report in memory so tests can assert
// on what a component reported.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

func (r *Recorder) add(severity Severity, id string, params []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Severity: severity, ID: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(SeverityBroken, id, params)
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(SeverityWarning, id, params)
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(SeverityDebug, msg, params)
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(SeverityCount, id, []any{count})
}

// Reports returns a copy of every report received so far.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Find returns the reports of the given severity whose id contains the
// substring.
func (r *Recorder) Find(severity Severity, id string) []Report {
	var out []Report
	for _, report := range r.Reports() {
		if report.Severity == severity && strings.Contains(report.ID, id) {
			out = append(out, report)
		}
	}
	return out
}
