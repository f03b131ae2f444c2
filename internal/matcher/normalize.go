// Package matcher decides whether a caller question can be answered from
// previously learned knowledge entries using lexical similarity only.
package matcher

import (
	"strings"
	"unicode"
)

// stopwords are dropped before token overlap is computed. The list is closed;
// changing it changes which learned answers are reused.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "do": {}, "does": {}, "is": {}, "are": {},
	"what": {}, "which": {}, "and": {}, "or": {}, "to": {}, "for": {}, "of": {},
	"you": {}, "your": {}, "we": {}, "our": {}, "on": {}, "in": {}, "at": {},
	"about": {}, "including": {}, "with": {}, "vs": {}, "list": {},
}

// Normalize lower-cases text, removes every rune other than a-z, 0-9 and
// whitespace, collapses whitespace runs to a single space and trims.
//
//	Normalize("  Do you do Keratin-Treatments?? ") == "do you do keratintreatments"
func Normalize(text string) string {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the set of non-stopword tokens of the normalized text.
func Tokens(text string) map[string]struct{} {
	return tokensOf(Normalize(text))
}

// tokensOf splits already-normalized text.
func tokensOf(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// IsStopword reports whether tok is ignored for token overlap.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}
