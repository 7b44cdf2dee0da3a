package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// Lower folds a string to lower case, language-neutrally.
func Lower(s string) string {
	return lowerCaser.String(s)
}

// NewSet builds a lower-cased string set, dropping blanks.
func NewSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(Lower(item))
		if item == "" {
			continue
		}
		set[item] = struct{}{}
	}
	return set
}

// Jaccard returns the intersection-over-union of two sets, or 0 when both
// are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for item := range a {
		if _, ok := b[item]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

var wordPattern = regexp.MustCompile(`[a-z]+`)

// Words extracts lower-case alphabetic tokens longer than two characters.
func Words(text string) []string {
	raw := wordPattern.FindAllString(Lower(text), -1)
	words := make([]string, 0, len(raw))
	for _, word := range raw {
		if len(word) > 2 {
			words = append(words, word)
		}
	}
	return words
}
