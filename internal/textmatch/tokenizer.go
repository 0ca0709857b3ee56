// Package textmatch provides the keyword tokenization used to relate client
// signals to offering text.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinLength is the shortest token kept by WordTokenizer.
const DefaultMinLength = 2

// DefaultStopwords are common English function words that carry no
// matching signal.
var DefaultStopwords = []string{
	"a", "about", "across", "after", "all", "an", "and", "any", "are", "as",
	"at", "be", "been", "being", "between", "both", "but", "by", "can", "do",
	"does", "during", "each", "for", "from", "had", "has", "have", "how",
	"in", "into", "is", "it", "its", "more", "most", "no", "not", "of",
	"on", "or", "other", "our", "out", "over", "per", "so", "such", "than",
	"that", "the", "their", "them", "then", "there", "these", "they", "this",
	"those", "through", "to", "too", "under", "up", "very", "via", "was",
	"we", "were", "what", "when", "where", "which", "while", "who", "why",
	"will", "with", "within", "without", "you", "your",
}

// Tokenizer turns free text into comparable lowercase tokens.
type Tokenizer interface {
	Tokens(text string) []string
}

// Option configures a WordTokenizer.
type Option func(*WordTokenizer)

// WithStopwords adds stopwords on top of DefaultStopwords.
func WithStopwords(words ...string) Option {
	return func(t *WordTokenizer) {
		for _, w := range words {
			w = strings.TrimSpace(cases.Fold().String(w))
			if w != "" {
				t.stopwords[w] = struct{}{}
			}
		}
	}
}

// WithMinLength drops tokens shorter than n runes. Values below 1 are ignored.
func WithMinLength(n int) Option {
	return func(t *WordTokenizer) {
		if n > 0 {
			t.minLength = n
		}
	}
}

// WordTokenizer folds case and diacritics, splits on anything that is not a
// letter or digit, and removes stopwords and short tokens. It is safe for
// concurrent use.
type WordTokenizer struct {
	stopwords map[string]struct{}
	minLength int
}

// NewWordTokenizer creates a WordTokenizer with DefaultStopwords.
func NewWordTokenizer(opts ...Option) *WordTokenizer {
	t := &WordTokenizer{
		stopwords: make(map[string]struct{}, len(DefaultStopwords)),
		minLength: DefaultMinLength,
	}
	for _, w := range DefaultStopwords {
		t.stopwords[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokens returns every salient token in text, in order, duplicates kept.
func (t *WordTokenizer) Tokens(text string) []string {
	if text == "" {
		return nil
	}
	fields := strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < t.minLength {
			continue
		}
		if _, stop := t.stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Normalize strips diacritics and folds case.
func Normalize(text string) string {
	// A transform chain carries state, so build one per call.
	chain := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(chain, text)
	if err != nil {
		stripped = text
	}
	return cases.Fold().String(stripped)
}

// Terms returns the de-duplicated tokens of text in first-seen order.
func Terms(tok Tokenizer, text string) []string {
	tokens := tok.Tokens(text)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tk := range tokens {
		if _, ok := seen[tk]; ok {
			continue
		}
		seen[tk] = struct{}{}
		terms = append(terms, tk)
	}
	return terms
}

// ContainsTerm reports whether term equals, or is a substring of, any token.
func ContainsTerm(term string, tokens []string) bool {
	for _, tk := range tokens {
		if tk == term || strings.Contains(tk, term) {
			return true
		}
	}
	return false
}

// CountShared returns how many of terms are present in tokens.
func CountShared(terms, tokens []string) int {
	n := 0
	for _, term := range terms {
		if ContainsTerm(term, tokens) {
			n++
		}
	}
	return n
}
