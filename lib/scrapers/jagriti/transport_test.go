package jagriti

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jagriti-backend/lib/configutil"
	"jagriti-backend/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type transportHarness struct {
	client   *Client
	clock    *fakeClock
	calls    *atomic.Int32
	recorder *telemetry.Recorder
}

func newTransportHarness(t *testing.T, handler http.HandlerFunc, configure ...func(*TransportConfig, *ClientOptions)) transportHarness {
	t.Helper()

	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL).Transport
	clock := newFakeClock()
	recorder := &telemetry.Recorder{}
	opts := ClientOptions{Clock: clock, Telemetry: recorder}
	for _, fn := range configure {
		fn(&cfg, &opts)
	}

	client, err := NewClient(cfg, opts)
	require.NoError(t, err)
	return transportHarness{client: client, clock: clock, calls: calls, recorder: recorder}
}

func TestFetchSendsBrowserRequest(t *testing.T) {
	var got *http.Request
	var form url.Values
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		r.ParseForm()
		form = r.PostForm
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1"})
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>ok</html>"))
	})

	res, err := h.client.Fetch(context.Background(), Request{
		Method: http.MethodPost,
		URL:    "/search",
		Query:  url.Values{"page": {"1"}},
		Form:   url.Values{"state": {"11"}},
	})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/html", res.ContentType)
	require.Equal(t, "<html>ok</html>", string(res.Body))
	require.Contains(t, res.URL, "/search?page=1")

	require.Equal(t, defaultUserAgent, got.Header.Get("User-Agent"))
	require.Contains(t, got.Header.Get("Accept"), "text/html")
	require.Equal(t, "en-US,en;q=0.5", got.Header.Get("Accept-Language"))
	require.Equal(t, "11", form.Get("state"))

	// the session cookie is sent back on the next request
	_, err = h.client.Fetch(context.Background(), Request{URL: "/states"})
	require.NoError(t, err)
	require.Equal(t, "session=s1", got.Header.Get("Cookie"))
}

func TestFetchRotatesUserAgents(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		w.Write([]byte("<html></html>"))
	}, func(cfg *TransportConfig, _ *ClientOptions) {
		cfg.UserAgents = []string{"agent-a", "agent-b"}
	})

	for range 3 {
		_, err := h.client.Fetch(context.Background(), Request{URL: "/"})
		require.NoError(t, err)
	}
	diff := cmp.Diff([]string{"agent-a", "agent-b", "agent-a"}, agents)
	require.Empty(t, diff)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("<html>recovered</html>"))
	})

	res, err := h.client.Fetch(context.Background(), Request{URL: "/states"})
	require.NoError(t, err)
	require.Equal(t, "<html>recovered</html>", string(res.Body))
	require.Equal(t, int32(3), h.calls.Load())

	diff := cmp.Diff([]time.Duration{time.Second, 2 * time.Second}, h.clock.Sleeps())
	require.Empty(t, diff)
}

func TestFetchHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("<html></html>"))
	})

	_, err := h.client.Fetch(context.Background(), Request{URL: "/states"})
	require.NoError(t, err)

	diff := cmp.Diff([]time.Duration{5 * time.Second}, h.clock.Sleeps())
	require.Empty(t, diff)
}

func TestFetchRejectsLongRetryAfter(t *testing.T) {
	testCases := []struct {
		name    string
		timeout time.Duration
		hint    string
	}{
		{name: "a day", hint: "86400"},
		{name: "beyond the request timeout", timeout: 10 * time.Second, hint: "11"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", test.hint)
				w.WriteHeader(http.StatusTooManyRequests)
			}, func(cfg *TransportConfig, _ *ClientOptions) {
				cfg.RequestTimeout = configutil.Duration(test.timeout)
			})

			_, err := h.client.Fetch(context.Background(), Request{URL: "/states"})
			require.ErrorIs(t, err, ErrUpstream)
			require.Equal(t, int32(1), h.calls.Load())
			require.Empty(t, h.clock.Sleeps())

			failure, _ := AsError(err)
			require.Equal(t, http.StatusTooManyRequests, failure.Status)
			require.Len(t, h.recorder.Find(telemetry.SeverityBroken, report_client_fetch), 1)
		})
	}
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := h.client.Fetch(context.Background(), Request{URL: "/states"})
	require.ErrorIs(t, err, ErrUpstream)
	require.Equal(t, int32(4), h.calls.Load())

	failure, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusInternalServerError, failure.Status)

	diff := cmp.Diff(
		[]time.Duration{time.Second, 2 * time.Second, 3 * time.Second},
		h.clock.Sleeps(),
	)
	require.Empty(t, diff)
	require.Len(t, h.recorder.Find(telemetry.SeverityBroken, report_client_fetch), 1)
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := h.client.Fetch(context.Background(), Request{URL: "/missing"})
	require.ErrorIs(t, err, ErrUpstream)
	require.Equal(t, int32(1), h.calls.Load())
	require.Empty(t, h.clock.Sleeps())

	failure, _ := AsError(err)
	require.Equal(t, http.StatusNotFound, failure.Status)
}

func TestFetchDetectsCaptcha(t *testing.T) {
	var hooked []*Error
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><div class="g-recaptcha" data-sitekey="x"></div></html>`))
	}, func(_ *TransportConfig, opts *ClientOptions) {
		opts.OnCaptcha = func(_ context.Context, err *Error) {
			hooked = append(hooked, err)
		}
	})

	_, err := h.client.Fetch(context.Background(), Request{URL: "/search"})
	require.ErrorIs(t, err, ErrCaptcha)
	require.True(t, IsCaptcha(err))
	require.Equal(t, int32(1), h.calls.Load())
	require.Empty(t, h.clock.Sleeps())

	failure, _ := AsError(err)
	require.Len(t, failure.IncidentID, 8)
	require.Contains(t, failure.Snippet, "g-recaptcha")
	require.Len(t, hooked, 1)
	require.Equal(t, failure.IncidentID, hooked[0].IncidentID)
}

func TestFetchCaptchaOnErrorStatus(t *testing.T) {
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`<html><p>Please verify you are a human</p></html>`))
	})

	_, err := h.client.Fetch(context.Background(), Request{URL: "/search"})
	require.ErrorIs(t, err, ErrCaptcha)
	require.Equal(t, int32(1), h.calls.Load())
}

func TestFetchTimeout(t *testing.T) {
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, func(cfg *TransportConfig, _ *ClientOptions) {
		cfg.RequestTimeout = configutil.Duration(25 * time.Millisecond)
		cfg.MaxRetries = 1
	})

	_, err := h.client.Fetch(context.Background(), Request{URL: "/states"})
	require.ErrorIs(t, err, ErrUpstream)
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, int32(2), h.calls.Load())
}

func TestFetchCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		<-r.Context().Done()
	})

	_, err := h.client.Fetch(ctx, Request{URL: "/states"})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, CodeOf(err))
	require.Equal(t, int32(1), h.calls.Load())
}

func TestFetchRateLimit(t *testing.T) {
	h := newTransportHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}, func(cfg *TransportConfig, _ *ClientOptions) {
		cfg.MinRequestInterval = configutil.Duration(40 * time.Millisecond)
	})

	start := time.Now()
	for range 3 {
		_, err := h.client.Fetch(context.Background(), Request{URL: "/"})
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	testCases := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{name: "seconds", value: "7", expected: 7 * time.Second},
		{name: "empty", value: "", expected: 0},
		{name: "negative", value: "-3", expected: 0},
		{name: "date", value: "Sat, 01 Feb 2025 10:00:30 GMT", expected: 30 * time.Second},
		{name: "past date", value: "Sat, 01 Feb 2025 09:00:00 GMT", expected: 0},
		{name: "garbage", value: "soon", expected: 0},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, parseRetryAfter(test.value, now))
		})
	}
}

func TestNewClientRejectsRelativeBase(t *testing.T) {
	cfg := DefaultTransportConfig()
	cfg.BaseURL = "/relative"
	_, err := NewClient(cfg, ClientOptions{})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUpstream))
}
