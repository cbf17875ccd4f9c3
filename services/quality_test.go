package services

import (
	"strings"
	"testing"
)

func TestQualityScoreEmpty(t *testing.T) {
	if got := QualityScore(""); got != 0 {
		t.Errorf("QualityScore(\"\") = %f, want 0", got)
	}
}

func TestQualityScoreRange(t *testing.T) {
	texts := []string{
		"short",
		strings.Repeat("normal prose with words and numbers 123. ", 30),
		"��� garbage �",
		"!!!???...",
	}
	for _, text := range texts {
		score := QualityScore(text)
		if score < 0 || score > 1 {
			t.Errorf("QualityScore(%.20q) = %f, out of [0,1]", text, score)
		}
	}
}

func TestQualityScoreReplacementMonotonicity(t *testing.T) {
	base := strings.Repeat("clean readable text ", 30)
	prev := QualityScore(base)
	for i := 1; i <= 3; i++ {
		noisy := base + strings.Repeat("�", i)
		score := QualityScore(noisy)
		if score >= prev {
			t.Errorf("score should drop with %d replacement chars: %f >= %f", i, score, prev)
		}
		prev = score
	}
}

func TestQualityScoreLengthRamp(t *testing.T) {
	short := "good words here"
	long := strings.Repeat("good words here ", 40)
	if QualityScore(short) >= QualityScore(long) {
		t.Errorf("short text should score below long text of same density: %f >= %f",
			QualityScore(short), QualityScore(long))
	}
}
