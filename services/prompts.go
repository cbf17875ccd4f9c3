package services

import (
	"fmt"
	"strings"

	"ia-assistant-platform/models"
)

// Chat modes.
const (
	ModeQA        = "qa"
	ModeIASummary = "ia_summary"
	ModeWebQA     = "web_qa"
)

const qaPrompt = `아래 근거들을 '사실 기반'으로 통합해 답하세요.
- 추정 금지, 각 문단 끝에 [src: ...] 표기
질문: %s
근거:
%s
`

const iaSummaryPrompt = `아래 근거를 바탕으로 '요약'만 간결히 작성하세요.
과장/추정 없이 사실 기반으로 쓰고, 각 문단 끝에 [근거: 문서/페이지/URI] 1~2개를 표기하세요.
요약 대상: %s
근거:
%s
`

const webQAPrompt = `아래 웹 검색 근거를 바탕으로 최신 정보를 사실 기반으로 답하세요.
- 추정/과장 금지, 각 문단 끝에 [src: URL] 표기
질문: %s
근거:
%s
`

// snippetMaxChars caps how much of a chunk is carried into the prompt.
const snippetMaxChars = 500

// BuildPrompt renders the grounded prompt for a mode. Callers must not
// invoke generation with zero hits on qa or ia_summary; the handlers
// short-circuit with a refusal before reaching here.
func BuildPrompt(mode, question string, hits []models.SearchHit) (string, error) {
	snippets := renderSnippets(hits)
	switch mode {
	case ModeQA:
		return fmt.Sprintf(qaPrompt, question, snippets), nil
	case ModeIASummary:
		return fmt.Sprintf(iaSummaryPrompt, question, snippets), nil
	default:
		return "", fmt.Errorf("no grounded prompt for mode %q", mode)
	}
}

// BuildWebPrompt renders the web_qa prompt from web search results.
func BuildWebPrompt(question string, sources []models.WebSource) string {
	lines := make([]string, 0, len(sources))
	for _, s := range sources {
		lines = append(lines, fmt.Sprintf("- %s: %s [src: %s]", s.Title, truncateRunes(s.Snippet, snippetMaxChars), s.URL))
	}
	return fmt.Sprintf(webQAPrompt, question, strings.Join(lines, "\n"))
}

// renderSnippets produces one evidence line per hit:
// "- {title} p.{page}: {chunk} [src: {uri}]" with the chunk capped at
// snippetMaxChars runes and newlines flattened to spaces.
func renderSnippets(hits []models.SearchHit) string {
	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		chunk := strings.ReplaceAll(h.Chunk, "\n", " ")
		chunk = truncateRunes(chunk, snippetMaxChars)
		if h.Page > 0 {
			lines = append(lines, fmt.Sprintf("- %s p.%d: %s [src: %s]", h.Title, h.Page, chunk, h.SourceURI))
		} else {
			lines = append(lines, fmt.Sprintf("- %s: %s [src: %s]", h.Title, chunk, h.SourceURI))
		}
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
