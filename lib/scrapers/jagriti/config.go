package jagriti

import (
	"time"

	"jagriti-backend/lib/configutil"
)

const DefaultBaseURL = "https://e-jagriti.gov.in"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Config struct {
	Transport TransportConfig `json:"transport"`
	Endpoints Endpoints       `json:"endpoints"`
}

type TransportConfig struct {
	BaseURL            string              `json:"base_url"`
	RequestTimeout     configutil.Duration `json:"request_timeout"`
	MaxRetries         int                 `json:"max_retries"`
	RetryDelay         configutil.Duration `json:"retry_delay"`
	MinRequestInterval configutil.Duration `json:"min_request_interval"`
	MaxConnections     int                 `json:"max_connections"`
	UserAgents         []string            `json:"user_agents"`
	Headers            map[string]string   `json:"headers"`
	CaptchaMarkers     []string            `json:"captcha_markers"`
	CloudflareBypass   bool                `json:"cloudflare_bypass"`
}

func (c TransportConfig) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.RetryDelay.Std(),
		Timeout:    c.RequestTimeout.Std(),
	}
}

// Endpoints describes where the portal serves each resource and which form
// fields it expects.
type Endpoints struct {
	StatesPath     string            `json:"states_path"`
	StatesQuery    map[string]string `json:"states_query"`
	StateSelectors []string          `json:"state_selectors"`

	CommissionsPath       string            `json:"commissions_path"`
	CommissionsStateParam string            `json:"commissions_state_param"`
	CommissionsQuery      map[string]string `json:"commissions_query"`
	CommissionSelectors   []string          `json:"commission_selectors"`

	SearchPath      string            `json:"search_path"`
	SearchMethod    string            `json:"search_method"`
	StateParam      string            `json:"state_param"`
	CommissionParam string            `json:"commission_param"`
	SearchFields    map[string]string `json:"search_fields"`
	// SubmitViaForm loads the search page first and submits its form, hidden
	// inputs included, to wherever its action points.
	SubmitViaForm bool   `json:"submit_via_form"`
	FormSelector  string `json:"form_selector"`

	EmptyResultMarkers []string `json:"empty_result_markers"`
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		StatesPath:     "/advance-case-search",
		StateSelectors: []string{"select[name=state]", "select#state"},

		CommissionsPath:       "/advance-case-search",
		CommissionsStateParam: "state",
		CommissionsQuery:      map[string]string{"court": "DCDRC"},
		CommissionSelectors: []string{
			"select[name=commission]",
			"select#commission",
			"select[name=dcdrc]",
		},

		SearchPath:      "/advance-case-search",
		SearchMethod:    "POST",
		StateParam:      "state",
		CommissionParam: "commission",
		SearchFields: map[string]string{
			"court_type":  "DCDRC",
			"order_type":  "daily_order",
			"date_filter": "filing_date",
		},
		SubmitViaForm: true,
		FormSelector:  "form",

		EmptyResultMarkers: []string{
			"no record found",
			"no records found",
			"no data found",
		},
	}
}

func DefaultTransportConfig() TransportConfig {
	policy := DefaultRetryPolicy()
	return TransportConfig{
		BaseURL:            DefaultBaseURL,
		RequestTimeout:     configutil.Duration(policy.Timeout),
		MaxRetries:         policy.MaxRetries,
		RetryDelay:         configutil.Duration(policy.BaseDelay),
		MinRequestInterval: configutil.Duration(250 * time.Millisecond),
		MaxConnections:     5,
		UserAgents:         []string{defaultUserAgent},
		Headers: map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7",
			"Accept-Language":           "en-US,en;q=0.5",
			"Upgrade-Insecure-Requests": "1",
		},
		CaptchaMarkers: DefaultCaptchaMarkers(),
	}
}

func DefaultConfig() Config {
	return Config{
		Transport: DefaultTransportConfig(),
		Endpoints: DefaultEndpoints(),
	}
}

// withFallbacks fills the fields an endpoint cannot work without.
func (e Endpoints) withFallbacks() Endpoints {
	d := DefaultEndpoints()
	if len(e.StateSelectors) == 0 {
		e.StateSelectors = d.StateSelectors
	}
	if len(e.CommissionSelectors) == 0 {
		e.CommissionSelectors = d.CommissionSelectors
	}
	if e.StateParam == "" {
		e.StateParam = d.StateParam
	}
	if e.CommissionParam == "" {
		e.CommissionParam = d.CommissionParam
	}
	if e.CommissionsStateParam == "" {
		e.CommissionsStateParam = d.CommissionsStateParam
	}
	if e.SearchMethod == "" {
		e.SearchMethod = d.SearchMethod
	}
	if e.FormSelector == "" {
		e.FormSelector = d.FormSelector
	}
	return e
}
