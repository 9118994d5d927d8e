package service

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	ugcPolicy    = bluemonday.UGCPolicy()
)

// cleanLine strips all markup from single-line author text.
func cleanLine(value string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(value))
}

// cleanRich keeps safe formatting in longer author text.
func cleanRich(value string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(value))
}

// slugify lower-cases, drops accents and joins words with dashes.
func slugify(value string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(value)))
	var b strings.Builder
	dash := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r == 'ñ':
			b.WriteRune('n')
			dash = false
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteRune('-')
				dash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
