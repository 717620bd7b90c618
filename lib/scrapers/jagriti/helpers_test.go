package jagriti

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jagriti-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

const statesPage = `<!DOCTYPE html>
<html><body>
<form method="post" action="/search">
	<input type="hidden" name="_token" value="tok-123">
	<input type="submit" name="go" value="Search">
	<select name="state" id="state">
		<option value="">-- Select State --</option>
		<option value="11">KARNATAKA</option>
		<option value="12">Kerala</option>
		<option value="29">  Tamil   Nadu </option>
	</select>
</form>
</body></html>`

const karnatakaCommissions = `<html><body>
<select name="commission">
	<option value="">-- Select District Commission --</option>
	<option value="1101">Bangalore 1st &amp; Rural Additional</option>
	<option value="1102">Bangalore Urban</option>
	<option value="1103">Mysore</option>
</select>
</body></html>`

const keralaCommissions = `<html><body>
<select name="commission">
	<option value="1201">Ernakulam</option>
</select>
</body></html>`

const tamilNaduCommissions = `<html><body>
<select name="commission">
	<option value="2901">Chennai (North)</option>
	<option value="2902">Madurai</option>
</select>
</body></html>`

// fakePortal serves the discovery pages and lets each test decide how
// searches are answered.
type fakePortal struct {
	t *testing.T

	states      func(w http.ResponseWriter, r *http.Request)
	commissionsMu sync.RWMutex
	commissions   map[string]string
	search      func(w http.ResponseWriter, r *http.Request)

	// commissionsGate, when set, holds commission responses until closed.
	commissionsGate chan struct{}

	statesHits      atomic.Int32
	commissionHits  atomic.Int32
	searchHits      atomic.Int32
	searchPageHits  atomic.Int32
	lastSearchForm  atomic.Value
	lastSearchQuery atomic.Value
	lastCommissions atomic.Value
}

func newFakePortal(t *testing.T) *fakePortal {
	return &fakePortal{
		t: t,
		states: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(statesPage))
		},
		commissions: map[string]string{
			"11": karnatakaCommissions,
			"12": keralaCommissions,
			"29": tamilNaduCommissions,
		},
		search: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"cases": []}`))
		},
	}
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/states":
		p.statesHits.Add(1)
		p.states(w, r)
	case "/commissions":
		p.commissionHits.Add(1)
		p.lastCommissions.Store(r.URL.Query())
		if p.commissionsGate != nil {
			select {
			case <-p.commissionsGate:
			case <-r.Context().Done():
				return
			}
		}
		p.commissionsMu.RLock()
		page, ok := p.commissions[r.URL.Query().Get("state")]
		p.commissionsMu.RUnlock()
		if !ok {
			page = `<html><body><select name="commission"></select></body></html>`
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	case "/search":
		if r.Method == http.MethodGet && r.URL.Query().Get("state") == "" {
			p.searchPageHits.Add(1)
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(statesPage))
			return
		}
		p.searchHits.Add(1)
		err := r.ParseForm()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p.lastSearchForm.Store(r.PostForm)
		p.lastSearchQuery.Store(r.URL.Query())
		p.search(w, r)
	default:
		http.NotFound(w, r)
	}
}

// setCommissions swaps the commissions page of a state while the server runs.
func (p *fakePortal) setCommissions(stateID, page string) {
	p.commissionsMu.Lock()
	defer p.commissionsMu.Unlock()
	p.commissions[stateID] = page
}

func (p *fakePortal) searchForm() url.Values {
	v, _ := p.lastSearchForm.Load().(url.Values)
	return v
}

func (p *fakePortal) searchQuery() url.Values {
	v, _ := p.lastSearchQuery.Load().(url.Values)
	return v
}

func (p *fakePortal) commissionsQuery() url.Values {
	v, _ := p.lastCommissions.Load().(url.Values)
	return v
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.Transport.BaseURL = baseURL
	cfg.Transport.MinRequestInterval = 0
	cfg.Transport.RequestTimeout = 0

	cfg.Endpoints.StatesPath = "/states"
	cfg.Endpoints.CommissionsPath = "/commissions"
	cfg.Endpoints.SearchPath = "/search"
	cfg.Endpoints.SubmitViaForm = false
	return cfg
}

type testPortal struct {
	*Portal
	fake     *fakePortal
	server   *httptest.Server
	clock    *fakeClock
	recorder *telemetry.Recorder
}

func newTestPortal(t *testing.T, configure ...func(*Config, *fakePortal)) testPortal {
	t.Helper()

	fake := newFakePortal(t)
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	for _, fn := range configure {
		fn(&cfg, fake)
	}

	clock := newFakeClock()
	recorder := &telemetry.Recorder{}
	portal, err := New(cfg, ClientOptions{
		Clock:     clock,
		Telemetry: recorder,
	})
	require.NoError(t, err)

	return testPortal{
		Portal:   portal,
		fake:     fake,
		server:   server,
		clock:    clock,
		recorder: recorder,
	}
}
