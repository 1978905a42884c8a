package security

import (
	"strings"
	"testing"
)

func TestSanitizeRemovesScript(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<p>買い物リスト</p><script>alert("xss")</script>`)
	if strings.Contains(got, "<script>") || strings.Contains(got, "alert") {
		t.Errorf("script content survived: %q", got)
	}
	if !strings.Contains(got, "<p>買い物リスト</p>") {
		t.Errorf("allowed tag was removed: %q", got)
	}
}

func TestSanitizeRemovesEventAttributes(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<p onclick="steal()">テキスト</p>`)
	if strings.Contains(got, "onclick") {
		t.Errorf("event attribute survived: %q", got)
	}
}

func TestSanitizeRemovesLinksAndImages(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<a href="https://example.com">リンク</a><img src="https://example.com/x.png">`)
	if strings.Contains(got, "<a") || strings.Contains(got, "<img") {
		t.Errorf("link or image tag survived: %q", got)
	}
	if !strings.Contains(got, "リンク") {
		t.Errorf("link text should survive: %q", got)
	}
}

func TestSanitizeKeepsFormattingTags(t *testing.T) {
	s := NewContentSanitizer()

	input := `<ul><li><strong>重要</strong></li><li><em>補足</em></li></ul><pre><code>go test</code></pre>`
	got := s.Sanitize(input)
	if got != input {
		t.Errorf("formatting tags should pass through unchanged:\n got: %q\nwant: %q", got, input)
	}
}

func TestSanitizeEmptyAndPlainText(t *testing.T) {
	s := NewContentSanitizer()

	if got := s.Sanitize(""); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
	if got := s.Sanitize("ただのテキスト"); got != "ただのテキスト" {
		t.Errorf("plain text should pass through, got %q", got)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>本文</p><script>x</script>`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("sanitize is not idempotent: %q vs %q", once, twice)
	}
}
