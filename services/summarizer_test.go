package services

import (
	"context"
	"strings"
	"testing"
)

type fakeCompleter struct {
	responses []string
	calls     int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp := f.responses[f.calls%len(f.responses)]
	f.calls++
	return resp, nil
}

func TestNormalizeHashtags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			"comma separated",
			"Security, Access Control, 정책",
			[]string{"#accesscontrol", "#security", "#정책"},
		},
		{
			"newlines and bullets",
			"- security\n• policy\n",
			[]string{"#policy", "#security"},
		},
		{
			"dedup",
			"Policy, policy, POLICY",
			[]string{"#policy"},
		},
		{
			"empty",
			"",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeHashtags(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeHashtags(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tag %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeHashtagsCap(t *testing.T) {
	var parts []string
	for i := 0; i < 20; i++ {
		parts = append(parts, strings.Repeat(string(rune('a'+i)), 3))
	}
	got := NormalizeHashtags(strings.Join(parts, ","))
	if len(got) != 12 {
		t.Errorf("expected at most 12 hashtags, got %d", len(got))
	}
}

func TestDigest(t *testing.T) {
	chat := &fakeCompleter{responses: []string{"문서 요약입니다.", "보안, 정책, 접근통제"}}
	s := NewSummarizer(chat)

	digest, err := s.Digest(context.Background(), "본문 텍스트")
	if err != nil {
		t.Fatalf("Digest() error: %v", err)
	}
	if digest.Summary != "문서 요약입니다." {
		t.Errorf("summary = %q", digest.Summary)
	}
	if len(digest.Hashtags) != 3 {
		t.Errorf("hashtags = %v, want 3 tags", digest.Hashtags)
	}
	if chat.calls != 2 {
		t.Errorf("expected 2 completions (summary, keywords), got %d", chat.calls)
	}
}
