package knowledge

import (
	"strings"
	"unicode"
)

// MinTokenRunes is the shortest token kept for matching.
const MinTokenRunes = 3

// SummaryWords caps the words kept in an entry's input summary.
const SummaryWords = 20

// stopwords are frequent particles and intensifiers that carry no topic.
var stopwords = map[string]struct{}{
	// Arabic (normalized spelling)
	"جدا": {}, "كتير": {}, "اوي": {}, "قوي": {}, "لكن": {}, "عشان": {}, "علشان": {},
	"اللي": {}, "الذي": {}, "التي": {}, "هذا": {}, "هذه": {}, "ذلك": {}, "كان": {},
	"كانت": {}, "انا": {}, "انت": {}, "على": {}, "الى": {}, "كل": {}, "ثم": {},
	// English
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {}, "very": {},
	"really": {}, "just": {}, "was": {}, "were": {}, "have": {}, "has": {}, "but": {},
	"not": {}, "you": {}, "are": {},
}

// Normalize lowercases s, strips diacritics, tatweel and punctuation,
// unifies alef forms, and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Mn, r), r == 'ـ':
			continue
		case r == 'أ' || r == 'إ' || r == 'آ' || r == 'ٱ':
			r = 'ا'
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteRune(unicode.ToLower(r))
		space = false
	}
	return strings.TrimSpace(b.String())
}

// Summarize returns the first SummaryWords normalized words of s.
func Summarize(s string) string {
	words := strings.Fields(Normalize(s))
	if len(words) > SummaryWords {
		words = words[:SummaryWords]
	}
	return strings.Join(words, " ")
}

// Tokenize returns the distinct meaningful tokens of s in order of appearance.
func Tokenize(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.Fields(Normalize(s)) {
		if len([]rune(w)) < MinTokenRunes {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// TokenSet is an unordered set of tokens.
type TokenSet map[string]struct{}

// NewTokenSet tokenizes s into a set.
func NewTokenSet(s string) TokenSet {
	toks := Tokenize(s)
	set := make(TokenSet, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}
