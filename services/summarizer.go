package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Completer is the slice of the chat client the summarizer needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// summarySampleChars bounds how much document text goes into the summary
// prompts.
const summarySampleChars = 6000

// Summarizer produces the upload-time document summary and hashtag set.
type Summarizer struct {
	chat Completer
}

func NewSummarizer(chat Completer) *Summarizer {
	return &Summarizer{chat: chat}
}

// DocumentDigest is the summary block attached to an upload record.
type DocumentDigest struct {
	Summary  string
	Hashtags []string
}

// Digest summarizes the document and extracts hashtags from its keywords.
func (s *Summarizer) Digest(ctx context.Context, text string) (*DocumentDigest, error) {
	sample := truncateRunes(text, summarySampleChars)

	summaryPrompt := "다음 문서를 한국어로 5문장 이내로 요약하고, 주요 주제 3가지를 불릿으로 제시하세요.\n\n" + sample
	summary, err := s.chat.Complete(ctx, summaryPrompt)
	if err != nil {
		return nil, fmt.Errorf("summarize document: %w", err)
	}

	keywordPrompt := "다음 문서의 핵심 키워드 8개만 콤마로 나열해 주세요 (짧고 보편적인 형태).\n\n" + sample
	keywords, err := s.chat.Complete(ctx, keywordPrompt)
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}

	return &DocumentDigest{
		Summary:  strings.TrimSpace(summary),
		Hashtags: NormalizeHashtags(keywords),
	}, nil
}

// NormalizeHashtags turns a comma or newline separated keyword list into a
// sorted, deduplicated set of lowercase hashtags, at most 12.
func NormalizeHashtags(raw string) []string {
	parts := strings.Split(strings.ReplaceAll(raw, "\n", ","), ",")

	set := make(map[string]bool)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimLeft(p, "-•")
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		tag := strings.ToLower("#" + strings.ReplaceAll(p, " ", ""))
		set[tag] = true
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	if len(tags) > 12 {
		tags = tags[:12]
	}
	return tags
}
