package crawler

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM/Docs/", "https://example.com/Docs"},
		{"https://example.com:443/a", "https://example.com/a"},
		{"http://example.com:80/", "http://example.com/"},
		{"https://example.com/page#section", "https://example.com/page"},
		{"example.com/path", "https://example.com/path"},
	}
	for _, tt := range tests {
		got, err := normalizeURL(tt.in)
		if err != nil {
			t.Errorf("normalizeURL(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := normalizeURL("/relative/only"); err == nil {
		t.Error("URL without a host must be rejected")
	}
}

func TestExtractMainContentPrefersMain(t *testing.T) {
	html := `<html><head><title>t</title></head><body>
		<nav>menu items that should not appear</nav>
		<main>` + strings.Repeat("article body text ", 10) + `</main>
		<footer>copyright line</footer>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	text := extractMainContent(doc.Selection)
	if !strings.Contains(text, "article body text") {
		t.Errorf("main content missing: %q", text)
	}
	if strings.Contains(text, "menu items") || strings.Contains(text, "copyright") {
		t.Errorf("navigation or footer leaked into content: %q", text)
	}
}

func TestExtractMainContentFallsBackToBody(t *testing.T) {
	html := `<html><body><p>short page</p></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if got := extractMainContent(doc.Selection); !strings.Contains(got, "short page") {
		t.Errorf("body fallback failed: %q", got)
	}
}
