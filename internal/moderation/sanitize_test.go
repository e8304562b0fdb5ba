package moderation

import (
	"strings"
	"testing"
)

func TestPlainTextStripsScript(t *testing.T) {
	got := Sanitize("<script>alert(1)</script>Hello", PlainText)
	if got != "Hello" {
		t.Fatalf("Sanitize plainText = %q, want %q", got, "Hello")
	}
}

func TestPlainTextStripsAllMarkup(t *testing.T) {
	got := Sanitize(`  <div onclick="evil()"><b>bold</b> and <a href="x">link</a></div> `, PlainText)
	if got != "bold and link" {
		t.Fatalf("Sanitize plainText = %q", got)
	}
}

func TestRichTextKeepsAllowList(t *testing.T) {
	got := Sanitize(`<b>bold</b> <script>alert(1)</script><img src=x onerror=evil()>text`, RichText)
	if !strings.Contains(got, "<b>bold</b>") {
		t.Fatalf("allow-listed tag removed: %q", got)
	}
	if strings.Contains(got, "script") || strings.Contains(got, "img") || strings.Contains(got, "onerror") {
		t.Fatalf("scripting vector survived: %q", got)
	}
}

func TestRichTextKeepsLinkTarget(t *testing.T) {
	got := Sanitize(`<a href="https://example.com" onclick="evil()">site</a>`, RichText)
	if !strings.Contains(got, `href="https://example.com"`) {
		t.Fatalf("href dropped: %q", got)
	}
	if strings.Contains(got, "onclick") {
		t.Fatalf("event handler survived: %q", got)
	}
}

func TestRichTextRejectsScriptScheme(t *testing.T) {
	got := Sanitize(`<a href="javascript:alert(1)">x</a>`, RichText)
	if strings.Contains(got, "javascript") {
		t.Fatalf("javascript: URL survived: %q", got)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"<script>alert(1)</script>Hello",
		"plain text, nothing special",
		`<b>bold</b> 5 < 6 & 7 > 2`,
		`<a href="https://example.com">link</a>`,
		"<div><p>nested<p></div>",
		"   padded   ",
		"",
	}
	for _, mode := range []Mode{RichText, PlainText} {
		for _, input := range inputs {
			once := Sanitize(input, mode)
			twice := Sanitize(once, mode)
			if once != twice {
				t.Fatalf("not idempotent (mode %d): %q -> %q -> %q", mode, input, once, twice)
			}
		}
	}
}

func TestMalformedMarkupDoesNotPanic(t *testing.T) {
	for _, input := range []string{"<", "<b", "</", "<a href=", "<<b>>", "<b><i></b></i>"} {
		_ = Sanitize(input, RichText)
		_ = Sanitize(input, PlainText)
	}
}
