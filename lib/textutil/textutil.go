package textutil

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeSpace trims s, drops non-printable runes and collapses inner
// whitespace runs into a single space.
func NormalizeSpace(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CanonicalKey is the form names are compared in: whitespace normalized and
// uppercased.
func CanonicalKey(name string) string {
	return strings.ToUpper(NormalizeSpace(name))
}

// NormalizeLabel reduces a column label or field name to lowercase words,
// "Case No./Year" becomes "case no year".
func NormalizeLabel(label string) string {
	label = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, label)
	return strings.Join(strings.Fields(label), " ")
}

// MinSimilarity is the Jaro-Winkler score a candidate needs to be suggested.
const MinSimilarity = 0.8

type scored struct {
	name  string
	score float64
}

// Closest returns up to limit candidates that look like name, best match
// first.
func Closest(name string, candidates []string, limit int) []string {
	key := CanonicalKey(name)
	if key == "" || limit <= 0 {
		return nil
	}

	var matches []scored
	for _, c := range candidates {
		score := matchr.JaroWinkler(key, CanonicalKey(c), false)
		if score >= MinSimilarity {
			matches = append(matches, scored{name: c, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}
