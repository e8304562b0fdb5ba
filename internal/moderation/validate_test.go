package moderation

import (
	"strings"
	"testing"
)

func TestValidateEmptyContent(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t "} {
		verdict := Validate(input)
		if verdict.IsValid {
			t.Fatalf("Validate(%q) accepted empty content", input)
		}
		if verdict.Reason != ReasonEmptyContent {
			t.Fatalf("Validate(%q) reason = %q, want %q", input, verdict.Reason, ReasonEmptyContent)
		}
	}
}

func TestValidateTooLong(t *testing.T) {
	verdict := Validate(strings.Repeat("a", MaxContentLength+1))
	if verdict.IsValid || verdict.Reason != ReasonTooLong {
		t.Fatalf("over-length text not rejected: %+v", verdict)
	}

	verdict = Validate(strings.Repeat("a", MaxContentLength))
	if !verdict.IsValid {
		t.Fatalf("text at the limit rejected: %+v", verdict)
	}
}

func TestValidateProfanity(t *testing.T) {
	verdict := Validate("well fuck that")
	if verdict.IsValid || verdict.Reason != ReasonInappropriateLanguage {
		t.Fatalf("profanity not rejected: %+v", verdict)
	}
}

func TestValidateOrderFirstFailureWins(t *testing.T) {
	// Empty beats everything else, even when the text would also be profane
	// after trimming rules ran in another order.
	verdict := Validate("   ")
	if verdict.Reason != ReasonEmptyContent {
		t.Fatalf("expected empty_content first, got %q", verdict.Reason)
	}
}

func TestValidateAcceptsCleanText(t *testing.T) {
	verdict := Validate("Looking forward to the next session!")
	if !verdict.IsValid {
		t.Fatalf("clean text rejected: %+v", verdict)
	}
	if verdict.Reason != "" {
		t.Fatalf("valid verdict carries reason %q", verdict.Reason)
	}
}

func TestValidateAfterSanitizeIgnoresMarkup(t *testing.T) {
	// Markup in the raw input never causes a rejection once sanitization ran.
	raw := `<script>alert(1)</script><b>perfectly fine text</b>`
	verdict := Validate(Sanitize(raw, PlainText))
	if !verdict.IsValid {
		t.Fatalf("sanitized text rejected: %+v", verdict)
	}
}

func TestMaskReplacesPolicyWords(t *testing.T) {
	masked := Mask("well fuck that")
	if strings.Contains(masked, "fuck") {
		t.Fatalf("Mask left policy word intact: %q", masked)
	}
	if !strings.Contains(masked, "*") {
		t.Fatalf("Mask produced no asterisks: %q", masked)
	}
}
