// Package moderation is the content pipeline every user-supplied text passes
// through before persistence: sanitization first, then policy validation.
package moderation

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Mode selects how much markup survives sanitization.
type Mode int

const (
	// RichText keeps a small allow-list of inline formatting tags.
	RichText Mode = iota
	// PlainText strips all markup and trims surrounding whitespace.
	PlainText
)

var (
	richPolicy  = newRichPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "em", "strong", "u", "a")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)
	return p
}

// Sanitize strips disallowed markup from raw user input. Script vectors,
// event handlers and anything outside the allow-list are removed in both
// modes. The function is idempotent and never fails; malformed markup
// degrades to empty output.
func Sanitize(raw string, mode Mode) string {
	if mode == RichText {
		return richPolicy.Sanitize(raw)
	}
	return strings.TrimSpace(plainPolicy.Sanitize(raw))
}
