package jagriti

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"jagriti-backend/lib/restyutil"
	"jagriti-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// Request is a single logical request to the portal, URL may be relative
// to the portal's base URL.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values
	Form   url.Values
}

type RawResponse struct {
	StatusCode  int
	ContentType string
	// URL is the final URL after redirects.
	URL    string
	Header http.Header
	Body   []byte
}

// Transport performs portal requests with retries, the identifier cache and
// the searcher only talk to the portal through it.
//
// note: fault injection point
type Transport interface {
	Fetch(ctx context.Context, req Request) (RawResponse, error)
}

type ClientOptions struct {
	// Clock defaults to the wall clock.
	Clock     Clock
	Telemetry telemetry.API
	// DumpOutput receives every exchange when set.
	DumpOutput restyutil.InstrumentOutput
	// OnCaptcha is called once per detected challenge page.
	OnCaptcha func(ctx context.Context, err *Error)
}

// Client is the resty backed Transport.
type Client struct {
	base      *url.URL
	http      *resty.Client
	policy    RetryPolicy
	limiter   *rate.Limiter
	clock     Clock
	markers   []string
	agents    []string
	agentIdx  atomic.Uint64
	onCaptcha func(ctx context.Context, err *Error)
	tel       telemetry.API
}

func NewClient(cfg TransportConfig, opts ClientOptions) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", cfg.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     cfg.MaxConnections,
		MaxIdleConnsPerHost: cfg.MaxConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	var roundTripper http.RoundTripper = transport
	if cfg.CloudflareBypass {
		roundTripper = cloudflarebp.AddCloudFlareByPass(roundTripper)
	}

	tel := telemetry.NewScopedAPI("jagriti", opts.Telemetry)

	client := resty.New()
	client.SetTransport(roundTripper)
	client.SetCookieJar(jar)
	client.SetHeaders(cfg.Headers)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(base.Hostname()))
	telemetry.InstrumentResty(client, "jagriti.lib.scrapers.jagriti/resty", tel)
	restyutil.InstrumentClient(client, opts.DumpOutput)

	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}

	var limiter *rate.Limiter
	if interval := cfg.MinRequestInterval.Std(); interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = []string{defaultUserAgent}
	}

	policy := cfg.RetryPolicy()
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	return &Client{
		base:      base,
		http:      client,
		policy:    policy,
		limiter:   limiter,
		clock:     clock,
		markers:   cfg.CaptchaMarkers,
		agents:    agents,
		onCaptcha: opts.OnCaptcha,
		tel:       tel,
	}, nil
}

// BaseURL is the URL relative request URLs are resolved against.
func (c *Client) BaseURL() *url.URL {
	copied := *c.base
	return &copied
}

func (c *Client) resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	return c.base.ResolveReference(ref).String(), nil
}

func (c *Client) nextUserAgent() string {
	idx := c.agentIdx.Add(1) - 1
	return c.agents[idx%uint64(len(c.agents))]
}

// Fetch performs req, retrying transient failures (timeouts, connection
// errors, 429 and 5xx responses) up to the policy's retry budget. captcha
// pages and other 4xx responses fail immediately.
func (c *Client) Fetch(ctx context.Context, req Request) (RawResponse, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	target, err := c.resolve(req.URL)
	if err != nil {
		return RawResponse{}, validationError("invalid request url %q: %s", req.URL, err.Error())
	}
	span.SetAttributes(
		attribute.String("method", method),
		attribute.String("url", target),
	)

	var lastErr *Error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.policy.Backoff(attempt)
			if limit := c.policy.RetryAfterLimit(); lastErr.retryAfter > limit {
				throttled := &Error{
					Code: CodeUpstream,
					Message: fmt.Sprintf(
						"portal asked to wait %s before retrying %s %s, longer than %s",
						lastErr.retryAfter, method, target, limit,
					),
					Status: lastErr.Status,
					Err:    lastErr,
				}
				c.tel.ReportBroken(report_client_fetch, throttled)
				span.RecordError(throttled)
				span.SetStatus(codes.Error, "retry-after too long")
				return RawResponse{}, throttled
			}
			if lastErr.retryAfter > delay {
				delay = lastErr.retryAfter
			}
			retryCounter.Add(ctx, 1)
			c.tel.ReportDebug(
				fmt.Sprintf("%s: retrying", report_client_fetch),
				method, target, attempt, delay.String(), lastErr.Error(),
			)
			err := c.clock.Sleep(ctx, delay)
			if err != nil {
				return RawResponse{}, err
			}
		}

		res, err := c.attempt(ctx, method, target, req)
		if err == nil {
			return res, nil
		}

		var failure *Error
		if !errors.As(err, &failure) || !retryable(failure) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "request failed")
			return RawResponse{}, err
		}
		lastErr = failure
	}

	exhausted := &Error{
		Code:    CodeUpstream,
		Message: fmt.Sprintf("giving up on %s %s after %d attempts", method, target, c.policy.MaxRetries+1),
		Status:  lastErr.Status,
		Err:     lastErr,
	}
	c.tel.ReportBroken(report_client_fetch, exhausted)
	span.RecordError(exhausted)
	span.SetStatus(codes.Error, "retries exhausted")
	return RawResponse{}, exhausted
}

func retryable(err *Error) bool {
	switch err.Code {
	case CodeTimeout, CodeNetwork:
		return true
	case CodeUpstream:
		return err.Status == http.StatusTooManyRequests || err.Status >= 500
	}
	return false
}

func (c *Client) attempt(ctx context.Context, method, target string, req Request) (RawResponse, error) {
	if c.limiter != nil {
		err := c.limiter.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return RawResponse{}, ctx.Err()
			}
			return RawResponse{}, fmt.Errorf("waiting for request slot: %w", err)
		}
	}

	attemptCtx := ctx
	if c.policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.policy.Timeout)
		defer cancel()
	}

	r := c.http.R().SetContext(attemptCtx)
	r.SetHeader("User-Agent", c.nextUserAgent())
	for key, values := range req.Header {
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if len(req.Form) > 0 {
		r.SetFormDataFromValues(req.Form)
	}

	res, err := r.Execute(method, target)
	if err != nil {
		attemptCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		if ctx.Err() != nil {
			return RawResponse{}, ctx.Err()
		}
		if isTimeout(err) {
			return RawResponse{}, &Error{
				Code:    CodeTimeout,
				Message: fmt.Sprintf("no response from %s within %s", target, c.policy.Timeout),
				Err:     err,
			}
		}
		return RawResponse{}, &Error{
			Code:    CodeNetwork,
			Message: fmt.Sprintf("%s %s", method, target),
			Err:     err,
		}
	}
	attemptCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("status", res.StatusCode())))

	raw := RawResponse{
		StatusCode:  res.StatusCode(),
		ContentType: res.Header().Get("Content-Type"),
		URL:         target,
		Header:      res.Header(),
		Body:        res.Body(),
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		raw.URL = res.RawResponse.Request.URL.String()
	}

	marker, found := detectCaptcha(raw.Body, c.markers)
	if found {
		return raw, c.captcha(ctx, raw, marker)
	}

	switch {
	case raw.StatusCode == http.StatusTooManyRequests || raw.StatusCode >= 500:
		return raw, &Error{
			Code:       CodeUpstream,
			Message:    fmt.Sprintf("portal responded %s", res.Status()),
			Status:     raw.StatusCode,
			retryAfter: parseRetryAfter(raw.Header.Get("Retry-After"), c.clock.Now()),
		}
	case raw.StatusCode >= 400:
		return raw, &Error{
			Code:    CodeUpstream,
			Message: fmt.Sprintf("portal responded %s", res.Status()),
			Status:  raw.StatusCode,
			Snippet: snippet(raw.Body),
		}
	}
	return raw, nil
}

func (c *Client) captcha(ctx context.Context, raw RawResponse, marker string) *Error {
	incident, err := random.String(8)
	if err != nil {
		incident = fmt.Sprintf("t%d", c.clock.Now().UnixNano())
	}
	failure := &Error{
		Code:       CodeCaptcha,
		Message:    fmt.Sprintf("portal served an anti-automation challenge (marker %q)", marker),
		Status:     raw.StatusCode,
		Snippet:    snippet(raw.Body),
		IncidentID: incident,
	}

	captchaCounter.Add(ctx, 1)
	c.tel.ReportBroken(report_client_captcha, failure, raw.URL, incident)
	if c.onCaptcha != nil {
		c.onCaptcha(ctx, failure)
	}
	return failure
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
