package jagriti

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	"2-1-2006",
	"2/1/2006",
	"2.1.2006",
	"2006-1-2",
}

// NormalizeDate converts the portal's date notations (DD-MM-YYYY,
// DD/MM/YYYY, DD.MM.YYYY, YYYY-MM-DD and ISO date-times) to YYYY-MM-DD. it
// returns nil for anything else, impossible dates included.
func NormalizeDate(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			iso := t.Format(time.DateOnly)
			return &iso
		}
	}

	if len(value) > 10 && (value[10] == 'T' || value[10] == ' ') {
		t, err := time.Parse(time.DateOnly, value[:10])
		if err == nil {
			iso := t.Format(time.DateOnly)
			return &iso
		}
	}
	return nil
}
