package jagriti

import (
	"bytes"
)

func DefaultCaptchaMarkers() []string {
	return []string{
		"g-recaptcha",
		"h-captcha",
		"cf-challenge",
		"captcha",
		"please verify you are a human",
	}
}

// detectCaptcha reports the first marker found in body, compared case
// insensitively.
func detectCaptcha(body []byte, markers []string) (string, bool) {
	if len(body) == 0 || len(markers) == 0 {
		return "", false
	}
	lower := bytes.ToLower(body)
	for _, m := range markers {
		if m == "" {
			continue
		}
		if bytes.Contains(lower, bytes.ToLower([]byte(m))) {
			return m, true
		}
	}
	return "", false
}
