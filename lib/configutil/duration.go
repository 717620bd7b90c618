package configutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Duration is a time.Duration that reads from config as either a Go duration
// string ("1.5s", "250ms") or a plain number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	// json5 allows single quoted strings
	if len(data) >= 2 && (data[0] == '"' || data[0] == '\'') && data[len(data)-1] == data[0] {
		parsed, err := time.ParseDuration(string(data[1 : len(data)-1]))
		if err != nil {
			return fmt.Errorf("invalid duration %s: %w", data, err)
		}
		*d = Duration(parsed)
		return nil
	}

	seconds, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s: expected a string or a number of seconds", data)
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}
