package shared

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Normalize folds text for comparison: trims, lower-cases, strips diacritics
// and removes everything that is not a word character or whitespace.
//
// "Café" and "cafe" normalize to the same value.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}

	return nonWord.ReplaceAllString(folded, "")
}

// NormalizeTrackKey builds a comparison key of the form "title|artist" with
// runs of whitespace collapsed.
func NormalizeTrackKey(title, artist string) string {
	return strings.Join(strings.Fields(Normalize(title)), " ") + "|" +
		strings.Join(strings.Fields(Normalize(artist)), " ")
}
