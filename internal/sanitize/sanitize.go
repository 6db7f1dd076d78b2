// Package sanitize removes markup from upstream text fields.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup returns s with every tag and comment removed. Text between and
// around tags is kept byte for byte, entities included. Empty input yields "".
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF; a strings.Reader has no other failure mode
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}

// StripMarkupPtr is StripMarkup for optional fields; nil yields "".
func StripMarkupPtr(s *string) string {
	if s == nil {
		return ""
	}
	return StripMarkup(*s)
}
