// Package term turns raw user input into search terms used as cache, index and request keys.
package term

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyTerm is returned when the input has no content after trimming whitespace.
var ErrEmptyTerm = errors.New("search term is empty")

// SearchTerm is a normalized lookup key. Only a Normalizer produces one.
type SearchTerm string

func (t SearchTerm) String() string {
	return string(t)
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithFoldDiacritics removes combining marks, so "café" and "cafe" share a key.
func WithFoldDiacritics(fold bool) Option {
	return func(n *Normalizer) {
		n.foldDiacritics = fold
	}
}

// Normalizer cleans raw search strings with the rules of one locale.
type Normalizer struct {
	locale         language.Tag
	foldDiacritics bool
}

func NewNormalizer(locale language.Tag, opts ...Option) *Normalizer {
	n := &Normalizer{locale: locale}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ParseLocale parses a BCP 47 tag such as "en" or "tr".
func ParseLocale(tag string) (language.Tag, error) {
	if tag == "" {
		return language.Und, nil
	}
	locale, err := language.Parse(tag)
	if err != nil {
		return language.Und, fmt.Errorf("language.Parse(%q) > %w", tag, err)
	}
	return locale, nil
}

// Locale returns the locale used for case folding.
func (n *Normalizer) Locale() language.Tag {
	return n.locale
}

// Normalize trims the input, lowercases it with the normalizer's locale and collapses
// inner whitespace into single spaces. Punctuation such as hyphens and apostrophes is kept.
func (n *Normalizer) Normalize(raw string) (SearchTerm, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrEmptyTerm
	}

	text = norm.NFC.String(text)
	if n.foldDiacritics {
		folded, _, err := transform.String(
			transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
			text,
		)
		if err != nil {
			return "", fmt.Errorf("transform.String > %w", err)
		}
		// Input made only of combining marks folds away.
		text = strings.TrimSpace(folded)
		if text == "" {
			return "", ErrEmptyTerm
		}
	}
	// cases.Caser keeps state, so each call gets its own.
	text = cases.Lower(n.locale).String(text)

	return SearchTerm(collapseSpaces(text)), nil
}

// MustNormalize is Normalize for inputs known to be valid, such as test fixtures and embedded word lists.
func (n *Normalizer) MustNormalize(raw string) SearchTerm {
	t, err := n.Normalize(raw)
	if err != nil {
		panic(fmt.Sprintf("term: normalize %q: %v", raw, err))
	}
	return t
}

func collapseSpaces(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			prevSpace = true
			b.WriteRune(' ')
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
