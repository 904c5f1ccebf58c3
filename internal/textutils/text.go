// Package textutils provides text normalization used by keyword and
// reference matching.
package textutils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)
	wordRe  = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// Fold lower-cases s, strips diacritics and collapses whitespace, so that
// "Hôtel  Léman" and "hotel leman" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(strings.ToLower(folded), " "))
}

// Words splits folded text into alphanumeric words.
func Words(s string) []string {
	return wordRe.FindAllString(Fold(s), -1)
}

// ContainsKeyword reports whether keyword occurs in text. Both sides are
// folded. Keywords of three characters or fewer must match a whole word
// ("bp" does not match "dbpedia"); longer ones match as substrings.
func ContainsKeyword(text, keyword string) bool {
	kw := Fold(keyword)
	if kw == "" {
		return false
	}
	folded := Fold(text)
	if len([]rune(kw)) > 3 {
		return strings.Contains(folded, kw)
	}
	for _, w := range wordRe.FindAllString(folded, -1) {
		if w == kw {
			return true
		}
	}
	return false
}

// MatchAny returns the first keyword of keywords found in text.
func MatchAny(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if ContainsKeyword(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// FirstSignificantToken returns the first word of name longer than two
// characters, folded. Legal-form prefixes such as "SA" are skipped by the
// length rule.
func FirstSignificantToken(name string) string {
	for _, w := range Words(name) {
		if len([]rune(w)) > 2 {
			return w
		}
	}
	return ""
}

// ContainsFolded reports whether needle occurs in haystack after folding both.
func ContainsFolded(haystack, needle string) bool {
	n := Fold(needle)
	return n != "" && strings.Contains(Fold(haystack), n)
}
