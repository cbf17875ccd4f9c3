package services

import (
	"testing"

	"ia-assistant-platform/models"
)

func hit(title, chunk string) models.SearchHit {
	return models.SearchHit{Title: title, Chunk: chunk}
}

func TestQueryTokens(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{"latin and digits", "What is RFC 2616?", []string{"what", "is", "rfc", "2616"}},
		{"short tokens dropped", "a b cd", []string{"cd"}},
		{"dedup keeps order", "policy policy review", []string{"policy", "review"}},
		{"hangul", "보안 정책 검토", []string{"보안", "정책", "검토"}},
		{"punctuation only", "?! ... --", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QueryTokens(tt.question)
			if len(got) != len(tt.want) {
				t.Fatalf("QueryTokens(%q) = %v, want %v", tt.question, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRelevantEnoughZeroTokens(t *testing.T) {
	hits := []models.SearchHit{hit("Doc", "any content at all")}
	if RelevantEnough("?!", hits, 3, 2) {
		t.Error("question with no tokens must never be relevant")
	}
}

func TestRelevantEnoughNoHits(t *testing.T) {
	if RelevantEnough("valid question", nil, 3, 2) {
		t.Error("no hits must not be relevant")
	}
}

func TestRelevantEnoughSingleHit(t *testing.T) {
	match := []models.SearchHit{hit("Security Policy", "the policy requires rotation")}
	if !RelevantEnough("rotation policy", match, 3, 2) {
		t.Error("single matching hit should pass with k == 1")
	}
	miss := []models.SearchHit{hit("Cafeteria Menu", "soup of the day")}
	if RelevantEnough("rotation policy", miss, 3, 2) {
		t.Error("single non-matching hit should fail")
	}
}

func TestRelevantEnoughTwoOfThree(t *testing.T) {
	hits := []models.SearchHit{
		hit("Security Guide", "password rotation schedule"),
		hit("Ops Runbook", "rotation procedure for credentials"),
		hit("Unrelated", "lunch menu"),
	}
	if !RelevantEnough("rotation", hits, 3, 2) {
		t.Error("two of three matching hits should pass")
	}

	weak := []models.SearchHit{
		hit("Security Guide", "password rotation schedule"),
		hit("Unrelated A", "lunch menu"),
		hit("Unrelated B", "parking rules"),
	}
	if RelevantEnough("rotation", weak, 3, 2) {
		t.Error("one of three matching hits should fail")
	}
}

func TestRelevantEnoughHangulScenario(t *testing.T) {
	hits := []models.SearchHit{
		hit("정보보안 지침", "보안 정책은 연 1회 검토한다"),
		hit("보안 교육 자료", "전 직원 보안 교육 및 정책 안내"),
		hit("Security_06", "access control baseline"),
	}
	if !RelevantEnough("보안 정책", hits, 3, 2) {
		t.Error("hangul question should match hangul evidence")
	}
	if RelevantEnough("급식 메뉴", hits, 3, 2) {
		t.Error("off-topic hangul question should be refused")
	}
}
