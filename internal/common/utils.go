package common

import (
	"regexp"
	"strings"
	"sync"
)

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Term maps a set of spellings to a canonical value. Tables of terms are
// searched in order, so more specific entries go first.
type Term struct {
	Match []string
	Value string
}

// FirstTerm returns the value of the first term with a spelling contained in s.
func FirstTerm(s string, terms []Term) (string, bool) {
	for _, t := range terms {
		if HasAny(s, t.Match...) {
			return t.Value, true
		}
	}
	return "", false
}

var (
	wordMu    sync.Mutex
	wordCache = map[string]*regexp.Regexp{}
)

// HasWord reports whether word occurs in s delimited by word boundaries.
// The comparison is case-sensitive; lower both sides for a folded match.
func HasWord(s, word string) bool {
	return wordRegexp(word).MatchString(s)
}

func wordRegexp(word string) *regexp.Regexp {
	wordMu.Lock()
	defer wordMu.Unlock()
	re, ok := wordCache[word]
	if !ok {
		re = regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
		wordCache[word] = re
	}
	return re
}

// IsNumeric reports whether v holds a Go numeric value as produced by the
// database driver or JSON decoding.
func IsNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// ToFloat converts a numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
