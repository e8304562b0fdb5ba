package moderation

import (
	"strings"
	"unicode/utf8"

	goaway "github.com/TwiN/go-away"
)

// MaxContentLength is the longest text accepted for posts and comments.
const MaxContentLength = 5000

const (
	ReasonEmptyContent          = "empty_content"
	ReasonTooLong               = "too_long"
	ReasonInappropriateLanguage = "inappropriate_language"
)

// Verdict is the outcome of a moderation pass. It is never persisted; it only
// gates whether content may be written.
type Verdict struct {
	IsValid bool
	Reason  string
}

// Validate applies the content rules in order; the first failure wins. It
// expects text that has already been sanitized, so policy words cannot hide
// inside markup the detector does not parse.
func Validate(text string) Verdict {
	if strings.TrimSpace(text) == "" {
		return Verdict{Reason: ReasonEmptyContent}
	}
	if utf8.RuneCountInString(text) > MaxContentLength {
		return Verdict{Reason: ReasonTooLong}
	}
	if goaway.IsProfane(text) {
		return Verdict{Reason: ReasonInappropriateLanguage}
	}
	return Verdict{IsValid: true}
}

// Mask replaces policy words with asterisks. The posting path hard-rejects
// instead of masking; this exists for presentation-layer previews.
func Mask(text string) string {
	return goaway.Censor(text)
}
