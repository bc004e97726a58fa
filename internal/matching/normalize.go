package matching

import (
	"sort"
	"strings"
	"unicode"
)

// Minimum token length kept by Normalize. Shorter tokens ("a", "of", "to")
// carry almost no signal and inflate set unions.
const minTermLen = 3

// TermSet is a deduplicated, order-irrelevant set of normalized tokens.
type TermSet map[string]struct{}

// Contains reports whether the set holds the given term.
func (s TermSet) Contains(term string) bool {
	_, ok := s[term]
	return ok
}

// Terms returns the set's members sorted lexicographically, so callers that
// iterate (e.g. deriving capability tags) stay deterministic.
func (s TermSet) Terms() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Normalize turns free text into a TermSet: lowercase, strip every character
// that is not a word character (ASCII letter, digit, underscore) or
// whitespace, split on whitespace runs, drop tokens shorter than minTermLen,
// deduplicate. Empty or whitespace-only input yields an empty set.
//
// Normalize is a pure function of its input: equal inputs always produce
// equal sets, which is what makes per-string caching in Matcher sound.
func Normalize(text string) TermSet {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	set := make(TermSet)
	for _, tok := range strings.Fields(b.String()) {
		if len(tok) >= minTermLen {
			set[tok] = struct{}{}
		}
	}
	return set
}
