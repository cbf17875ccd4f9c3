package services

import (
	"strings"
	"testing"

	"ia-assistant-platform/models"
)

func TestBuildPromptQA(t *testing.T) {
	hits := []models.SearchHit{
		{Title: "보안지침", Page: 3, Chunk: "정책은 연 1회 검토한다.\n개정 이력은 부록 참조.", SourceURI: "docs/sec.pdf"},
	}
	prompt, err := BuildPrompt(ModeQA, "정책 검토 주기는?", hits)
	if err != nil {
		t.Fatalf("BuildPrompt() error: %v", err)
	}
	if !strings.Contains(prompt, "질문: 정책 검토 주기는?") {
		t.Error("prompt missing question")
	}
	if !strings.Contains(prompt, "- 보안지침 p.3: ") {
		t.Error("prompt missing evidence line header")
	}
	if !strings.Contains(prompt, "[src: docs/sec.pdf]") {
		t.Error("prompt missing source marker")
	}
	if strings.Contains(prompt, "검토한다.\n개정") {
		t.Error("newlines inside chunk must be flattened")
	}
}

func TestBuildPromptUnknownMode(t *testing.T) {
	if _, err := BuildPrompt("translate", "q", nil); err == nil {
		t.Error("unknown mode should error")
	}
}

func TestBuildPromptTruncatesLongChunks(t *testing.T) {
	long := strings.Repeat("가", 1200)
	hits := []models.SearchHit{{Title: "T", Chunk: long, SourceURI: "u"}}
	prompt, err := BuildPrompt(ModeIASummary, "q", hits)
	if err != nil {
		t.Fatalf("BuildPrompt() error: %v", err)
	}
	if strings.Contains(prompt, strings.Repeat("가", snippetMaxChars+1)) {
		t.Error("chunk not truncated to snippet cap")
	}
	if !strings.Contains(prompt, strings.Repeat("가", snippetMaxChars)) {
		t.Error("truncated chunk missing from prompt")
	}
}

func TestBuildWebPrompt(t *testing.T) {
	sources := []models.WebSource{
		{Title: "News", Snippet: "latest release notes", URL: "https://example.com/a"},
	}
	prompt := BuildWebPrompt("what changed?", sources)
	if !strings.Contains(prompt, "[src: https://example.com/a]") {
		t.Error("web prompt missing source URL")
	}
	if !strings.Contains(prompt, "질문: what changed?") {
		t.Error("web prompt missing question")
	}
}
