package jagriti

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"jagriti-backend/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func reddyQuery() Query {
	return Query{
		State:       "KARNATAKA",
		Commission:  "Bangalore 1st & Rural Additional",
		SearchValue: "Reddy",
		Kind:        KindComplainant,
	}
}

func serveJSON(body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestSearch(t *testing.T) {
	p := newTestPortal(t, func(_ *Config, fake *fakePortal) {
		fake.search = serveJSON(`{"cases": [{
			"case_number": "DC/1101/CC/45/2024",
			"case_stage": "Admission",
			"filing_date": "12-01-2024",
			"complainant": "Ravi Reddy",
			"respondent": "Acme Ltd",
			"document_link": "/orders/45.pdf"
		}]}`)
	})

	res, err := p.Search(context.Background(), reddyQuery())
	require.NoError(t, err)

	link := p.server.URL + "/orders/45.pdf"
	date := "2024-01-12"
	expected := SearchResult{
		Cases: []CaseRecord{{
			CaseNumber:   "DC/1101/CC/45/2024",
			CaseStage:    "Admission",
			FilingDate:   &date,
			Complainant:  "Ravi Reddy",
			Respondent:   "Acme Ltd",
			DocumentLink: &link,
		}},
		TotalCount:       1,
		SearchParameters: reddyQuery(),
	}
	diff := cmp.Diff(expected, res)
	require.Empty(t, diff)

	form := p.fake.searchForm()
	require.Equal(t, "11", form.Get("state"))
	require.Equal(t, "1101", form.Get("commission"))
	require.Equal(t, "Reddy", form.Get("complainant_name"))
	require.Equal(t, "DCDRC", form.Get("court_type"))
	require.Equal(t, int32(1), p.fake.searchHits.Load())
}

func TestSearchKindsUseTheirField(t *testing.T) {
	p := newTestPortal(t)

	for _, kind := range SearchKinds() {
		t.Run(string(kind), func(t *testing.T) {
			q := reddyQuery()
			q.Kind = kind
			q.SearchValue = "value-" + string(kind)

			res, err := p.Search(context.Background(), q)
			require.NoError(t, err)
			require.Empty(t, res.Cases)
			require.NotNil(t, res.Cases)
			require.Zero(t, res.TotalCount)

			require.Equal(t, q.SearchValue, p.fake.searchForm().Get(kind.Param()))
		})
	}

	// identifiers were resolved once for every search
	require.Equal(t, int32(1), p.fake.statesHits.Load())
	require.Equal(t, int32(1), p.fake.commissionHits.Load())
}

func TestSearchTrimsInput(t *testing.T) {
	p := newTestPortal(t)

	q := Query{
		State:       "  karnataka ",
		Commission:  " mysore",
		SearchValue: " CC/12/2024  ",
		Kind:        KindCaseNumber,
	}
	res, err := p.Search(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, "CC/12/2024", res.SearchParameters.SearchValue)
	require.Equal(t, "CC/12/2024", p.fake.searchForm().Get("case_no"))
	require.Equal(t, "1103", p.fake.searchForm().Get("commission"))
}

func TestSearchValidation(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(q *Query)
	}{
		{name: "empty value", modify: func(q *Query) { q.SearchValue = "   " }},
		{name: "empty state", modify: func(q *Query) { q.State = "" }},
		{name: "empty commission", modify: func(q *Query) { q.Commission = "\t" }},
		{name: "unknown kind", modify: func(q *Query) { q.Kind = "nickname" }},
		{name: "missing kind", modify: func(q *Query) { q.Kind = "" }},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			p := newTestPortal(t)
			q := reddyQuery()
			test.modify(&q)

			_, err := p.Search(context.Background(), q)
			require.ErrorIs(t, err, ErrValidation)

			failure, _ := AsError(err)
			require.Equal(t, StageBuild, failure.Stage)
			require.Equal(t, int32(0), p.fake.statesHits.Load())
			require.Equal(t, int32(0), p.fake.searchHits.Load())
		})
	}
}

func TestSearchUnknownNames(t *testing.T) {
	testCases := []struct {
		name       string
		state      string
		commission string
		suggestion string
	}{
		{name: "state", state: "Karnatak", commission: "Mysore", suggestion: "KARNATAKA"},
		{name: "commission", state: "Karnataka", commission: "Mysuru", suggestion: "Mysore"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			p := newTestPortal(t)
			q := reddyQuery()
			q.State = test.state
			q.Commission = test.commission

			_, err := p.Search(context.Background(), q)
			require.ErrorIs(t, err, ErrNotFound)

			failure, _ := AsError(err)
			require.Equal(t, StageResolve, failure.Stage)
			require.Contains(t, failure.Suggestions, test.suggestion)
			require.Equal(t, int32(0), p.fake.searchHits.Load())
		})
	}
}

func TestSearchStageDoesNotLeakIntoCache(t *testing.T) {
	p := newTestPortal(t, func(_ *Config, fake *fakePortal) {
		fake.commissions["11"] = `<html><p>maintenance</p></html>`
	})

	_, err := p.Search(context.Background(), reddyQuery())
	require.ErrorIs(t, err, ErrParse)
	failure, _ := AsError(err)
	require.Equal(t, StageResolve, failure.Stage)

	_, err = p.Cache.ListCommissions(context.Background(), "11")
	require.ErrorIs(t, err, ErrParse)
	failure, _ = AsError(err)
	require.Empty(t, failure.Stage)
}

func TestSearchCaptcha(t *testing.T) {
	var incidents []string
	p := newTestPortal(t, func(_ *Config, fake *fakePortal) {
		fake.search = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><form><div class="h-captcha"></div></form></html>`))
		}
	})
	p.Client.onCaptcha = func(_ context.Context, err *Error) {
		incidents = append(incidents, err.IncidentID)
	}

	_, err := p.Search(context.Background(), reddyQuery())
	require.True(t, IsCaptcha(err))

	failure, _ := AsError(err)
	require.Equal(t, StageFetch, failure.Stage)
	require.Equal(t, []string{failure.IncidentID}, incidents)
	require.Equal(t, int32(1), p.fake.searchHits.Load())

	broken := p.recorder.Find(telemetry.SeverityBroken, report_client_captcha)
	require.Len(t, broken, 1)
}

func TestSearchUpstreamFailure(t *testing.T) {
	p := newTestPortal(t, func(cfg *Config, fake *fakePortal) {
		cfg.Transport.MaxRetries = 1
		fake.search = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "oops", http.StatusInternalServerError)
		}
	})

	_, err := p.Search(context.Background(), reddyQuery())
	require.ErrorIs(t, err, ErrUpstream)

	failure, _ := AsError(err)
	require.Equal(t, StageFetch, failure.Stage)
	require.Equal(t, http.StatusInternalServerError, failure.Status)
	require.Equal(t, int32(2), p.fake.searchHits.Load())
}

func TestSearchUnreadableResults(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "no rows readable", body: `{"cases": [{"foo": 1}, {"bar": 2}]}`},
		{name: "unrelated page", body: `<html><body><p>Session expired</p></body></html>`},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			p := newTestPortal(t, func(_ *Config, fake *fakePortal) {
				fake.search = func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(test.body))
				}
			})

			_, err := p.Search(context.Background(), reddyQuery())
			require.ErrorIs(t, err, ErrParse)

			failure, _ := AsError(err)
			require.Equal(t, StageNormalize, failure.Stage)
			require.NotEmpty(t, failure.Snippet)
		})
	}
}

func TestSearchReportsSkippedRows(t *testing.T) {
	p := newTestPortal(t, func(_ *Config, fake *fakePortal) {
		fake.search = serveJSON(`[{"case_number": "CC/1"}, {"unknown": true}, 7]`)
	})

	res, err := p.Search(context.Background(), reddyQuery())
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	require.Equal(t, 2, res.SkippedRows)

	warnings := p.recorder.Find(telemetry.SeverityWarning, report_searcher_search)
	require.Len(t, warnings, 1)
}

func TestSearchNoRecords(t *testing.T) {
	p := newTestPortal(t, func(_ *Config, fake *fakePortal) {
		fake.search = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body><div>No records found for the given criteria</div></body></html>`))
		}
	})

	res, err := p.Search(context.Background(), reddyQuery())
	require.NoError(t, err)
	require.Empty(t, res.Cases)
	require.Zero(t, res.TotalCount)
}

func TestSearchViaForm(t *testing.T) {
	p := newTestPortal(t, func(cfg *Config, fake *fakePortal) {
		cfg.Endpoints.SubmitViaForm = true
		fake.search = serveJSON(`[{"case_number": "CC/2", "complainant": "Reddy"}]`)
	})

	res, err := p.Search(context.Background(), reddyQuery())
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)

	require.Equal(t, int32(1), p.fake.searchPageHits.Load())
	form := p.fake.searchForm()
	require.Equal(t, "tok-123", form.Get("_token"))
	require.Equal(t, "11", form.Get("state"))
	require.Equal(t, "1101", form.Get("commission"))
	require.Equal(t, "Reddy", form.Get("complainant_name"))
	// submit buttons are not carried over
	require.False(t, form.Has("go"))
}

func TestSearchWithGet(t *testing.T) {
	p := newTestPortal(t, func(cfg *Config, fake *fakePortal) {
		cfg.Endpoints.SearchMethod = "get"
	})

	_, err := p.Search(context.Background(), reddyQuery())
	require.NoError(t, err)

	query := p.fake.searchQuery()
	require.Equal(t, "11", query.Get("state"))
	require.Equal(t, "Reddy", query.Get("complainant_name"))
	require.Empty(t, p.fake.searchForm())
}

func TestSearchCancelled(t *testing.T) {
	p := newTestPortal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Search(ctx, reddyQuery())
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, CodeOf(err))
}

func TestParseSearchKind(t *testing.T) {
	testCases := []struct {
		input    string
		expected SearchKind
		ok       bool
	}{
		{input: "case_number", expected: KindCaseNumber, ok: true},
		{input: "Case-Number", expected: KindCaseNumber, ok: true},
		{input: " COMPLAINANT ", expected: KindComplainant, ok: true},
		{input: "respondent-advocate", expected: KindRespondentAdvocate, ok: true},
		{input: "industry", expected: KindIndustry, ok: true},
		{input: "industry_type", expected: KindIndustry, ok: true},
		{input: "judge", expected: KindJudge, ok: true},
		{input: "district", ok: false},
		{input: "", ok: false},
	}

	for _, test := range testCases {
		t.Run(test.input, func(t *testing.T) {
			kind, err := ParseSearchKind(test.input)
			if !test.ok {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expected, kind)
		})
	}

	require.Equal(t, "complainant-advocate", KindComplainantAdvocate.Slug())
	require.Len(t, SearchKinds(), 7)
}
