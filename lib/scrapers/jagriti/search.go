package jagriti

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jagriti-backend/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

type Query struct {
	State       string     `json:"state"`
	Commission  string     `json:"commission"`
	SearchValue string     `json:"search_value"`
	Kind        SearchKind `json:"search_kind"`
}

func (q Query) trimmed() Query {
	q.State = strings.TrimSpace(q.State)
	q.Commission = strings.TrimSpace(q.Commission)
	q.SearchValue = strings.TrimSpace(q.SearchValue)
	return q
}

func (q Query) validate() error {
	if !q.Kind.Valid() {
		return validationError("unknown search kind %q", q.Kind)
	}
	if q.SearchValue == "" {
		return validationError("search value is empty")
	}
	if q.State == "" {
		return validationError("state is empty")
	}
	if q.Commission == "" {
		return validationError("commission is empty")
	}
	return nil
}

type SearchResult struct {
	Cases            []CaseRecord `json:"cases"`
	TotalCount       int          `json:"total_count"`
	SearchParameters Query        `json:"search_parameters"`
	SkippedRows      int          `json:"skipped_rows,omitempty"`
}

// Searcher runs a query through resolve, build, fetch and normalize, any
// failing stage ends the search with an *Error tagged with that stage.
type Searcher struct {
	cache     *IdentifierCache
	transport Transport
	endpoints Endpoints
	base      *url.URL
	tel       telemetry.API
}

// NewSearcher creates a searcher, base resolves relative document links and
// may be nil.
func NewSearcher(cache *IdentifierCache, transport Transport, endpoints Endpoints, base *url.URL, tel telemetry.API) *Searcher {
	return &Searcher{
		cache:     cache,
		transport: transport,
		endpoints: endpoints.withFallbacks(),
		base:      base,
		tel:       telemetry.NewScopedAPI("jagriti", tel),
	}
}

func (s *Searcher) Search(ctx context.Context, q Query) (SearchResult, error) {
	ctx, span := tracer.Start(ctx, "searcher:Search")
	defer span.End()

	start := time.Now()
	q = q.trimmed()
	span.SetAttributes(attribute.String("kind", string(q.Kind)))

	res, stage, err := s.search(ctx, q)

	outcome := "ok"
	if err != nil {
		err = withStage(stage, err)
		outcome = string(CodeOf(err))
		if outcome == "" {
			outcome = "cancelled"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
	}
	searchDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("kind", string(q.Kind)),
		attribute.String("outcome", outcome),
	))
	return res, err
}

func (s *Searcher) search(ctx context.Context, q Query) (SearchResult, Stage, error) {
	err := q.validate()
	if err != nil {
		return SearchResult{}, StageBuild, err
	}

	state, err := s.cache.ResolveState(ctx, q.State)
	if err != nil {
		return SearchResult{}, StageResolve, err
	}
	commission, err := s.cache.ResolveCommission(ctx, state.ID, q.Commission)
	if err != nil {
		return SearchResult{}, StageResolve, err
	}

	req := s.buildRequest(state, commission, q)

	raw, err := s.fetch(ctx, req)
	if err != nil {
		return SearchResult{}, StageFetch, err
	}

	normalized, err := Normalize(raw, q.Kind, NormalizeOptions{
		Base:               s.base,
		EmptyResultMarkers: s.endpoints.EmptyResultMarkers,
	})
	if err != nil {
		s.tel.ReportBroken(report_normalizer, err, q.Kind)
		return SearchResult{}, StageNormalize, err
	}
	if normalized.Skipped > 0 {
		skippedRowCounter.Add(ctx, int64(normalized.Skipped))
		s.tel.ReportWarning(
			report_searcher_search,
			"skipped unrecognized rows",
			normalized.Skipped,
			len(normalized.Cases),
			q.Kind,
		)
	}
	if normalized.RawRows > 0 && len(normalized.Cases) == 0 {
		return SearchResult{}, StageNormalize, parseError(
			raw.Body,
			"none of the %d result rows could be read", normalized.RawRows,
		)
	}

	return SearchResult{
		Cases:            normalized.Cases,
		TotalCount:       len(normalized.Cases),
		SearchParameters: q,
		SkippedRows:      normalized.Skipped,
	}, StageNormalize, nil
}

func (s *Searcher) buildRequest(state State, commission Commission, q Query) Request {
	values := toValues(s.endpoints.SearchFields, nil)
	values.Set(s.endpoints.StateParam, state.ID)
	values.Set(s.endpoints.CommissionParam, commission.ID)
	values.Set(q.Kind.Param(), q.SearchValue)

	req := Request{
		Method: strings.ToUpper(s.endpoints.SearchMethod),
		URL:    s.endpoints.SearchPath,
	}
	if req.Method == http.MethodGet {
		req.Query = values
	} else {
		req.Form = values
	}
	return req
}

// fetch submits req, going through the search page's form first when
// configured to.
func (s *Searcher) fetch(ctx context.Context, req Request) (RawResponse, error) {
	if !s.endpoints.SubmitViaForm {
		return s.transport.Fetch(ctx, req)
	}

	page, err := s.transport.Fetch(ctx, Request{
		Method: http.MethodGet,
		URL:    s.endpoints.SearchPath,
	})
	if err != nil {
		return RawResponse{}, err
	}
	form, ok := parseSearchForm(page, s.endpoints.FormSelector)
	if !ok {
		s.tel.ReportWarning(
			report_searcher_search,
			fmt.Errorf("no %q on search page, submitting to %s", s.endpoints.FormSelector, req.URL),
		)
		return s.transport.Fetch(ctx, req)
	}

	values := req.Form
	if req.Method == http.MethodGet {
		values = req.Query
	}
	merged := toValues(nil, form.fields)
	for k, vs := range values {
		merged[k] = vs
	}

	submit := Request{
		Method: form.method,
		URL:    form.action,
		Header: http.Header{"Referer": []string{page.URL}},
	}
	if form.method == http.MethodGet {
		submit.Query = merged
	} else {
		submit.Form = merged
	}
	return s.transport.Fetch(ctx, submit)
}

// IsCaptcha reports whether err came from an anti-automation challenge.
func IsCaptcha(err error) bool {
	return errors.Is(err, ErrCaptcha)
}
