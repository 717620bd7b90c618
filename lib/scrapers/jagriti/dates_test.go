package jagriti

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: "01-02-2025", expected: "2025-02-01"},
		{input: "01/02/2025", expected: "2025-02-01"},
		{input: "2025-02-01", expected: "2025-02-01"},
		{input: "01.02.2025", expected: "2025-02-01"},
		{input: "1-2-2025", expected: "2025-02-01"},
		{input: " 31/12/2024 ", expected: "2024-12-31"},
		{input: "2025-02-01T10:30:00+05:30", expected: "2025-02-01"},
		{input: "2025-02-01 10:30:00", expected: "2025-02-01"},
		{input: "N/A"},
		{input: ""},
		{input: "31-02-2025"},
		{input: "02-2025"},
		{input: "yesterday"},
	}

	for _, test := range testCases {
		t.Run(test.input, func(t *testing.T) {
			got := NormalizeDate(test.input)
			if test.expected == "" {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, test.expected, *got)
		})
	}
}
