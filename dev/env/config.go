package devenv

// LivePortalConfig drives the tests that talk to the real portal, it is read
// from dev/.state/jagriti_live.json5.
type LivePortalConfig struct {
	BaseUrl     string `json:"base_url"`
	State       string `json:"state"`
	Commission  string `json:"commission"`
	Complainant string `json:"complainant"`
}
