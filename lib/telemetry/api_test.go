package telemetry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	tel := NewScopedAPI("jagriti", NewScopedAPI("transport", rec))

	tel.ReportBroken("client.fetch", "boom")
	tel.ReportWarning("searcher.search", 2)
	tel.ReportDebug("retrying")
	tel.ReportCount("identifier_cache.states", 36)

	expected := []Report{
		{Severity: SeverityBroken, ID: "transport: jagriti: client.fetch", Params: []any{"boom"}},
		{Severity: SeverityWarning, ID: "transport: jagriti: searcher.search", Params: []any{2}},
		{Severity: SeverityDebug, ID: "transport: jagriti: retrying", Params: nil},
		{Severity: SeverityCount, ID: "transport: jagriti: identifier_cache.states", Params: []any{int64(36)}},
	}
	diff := cmp.Diff(expected, rec.Reports())
	require.Empty(t, diff)

	require.Len(t, rec.Find(SeverityWarning, "searcher"), 1)
	require.Empty(t, rec.Find(SeverityBroken, "searcher"))
}

func TestScopedAPIDefaultsToSlog(t *testing.T) {
	tel := NewScopedAPI("test", nil)
	require.NotPanics(t, func() {
		tel.ReportDebug("hello", 1, "two")
	})
}
