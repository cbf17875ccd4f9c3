package services

import (
	"strings"
	"testing"
)

func TestCleanTextJoinsSingleNewlines(t *testing.T) {
	in := "first line\nsecond line\n\nnew paragraph"
	want := "first line second line\n\nnew paragraph"
	if got := CleanText(in); got != want {
		t.Errorf("CleanText() = %q, want %q", got, want)
	}
}

func TestCleanTextDeHyphenation(t *testing.T) {
	in := "exam-\nple"
	if got := CleanText(in); got != "example" {
		t.Errorf("CleanText(%q) = %q, want %q", in, got, "example")
	}
}

func TestCleanTextDropsControlsKeepsTabs(t *testing.T) {
	in := "a\x00b\x07c\td"
	want := "abc\td"
	if got := CleanText(in); got != want {
		t.Errorf("CleanText() = %q, want %q", got, want)
	}
}

func TestCleanTextNonBreakingAndZeroWidth(t *testing.T) {
	in := "a\u00a0b\u200bc"
	// NBSP and zero-width become spaces, then runs collapse.
	want := "a b c"
	if got := CleanText(in); got != want {
		t.Errorf("CleanText() = %q, want %q", got, want)
	}
}

func TestCleanTextCollapsesReplacementRuns(t *testing.T) {
	in := "broken ���� text"
	got := CleanText(in)
	if strings.Count(got, "�") != 1 {
		t.Errorf("expected single replacement char, got %q", got)
	}
}

func TestCleanTextCapsPunctuationRuns(t *testing.T) {
	in := "section\n==========\nbody"
	got := CleanText(in)
	if strings.Contains(got, "===") {
		t.Errorf("punctuation run not capped: %q", got)
	}
	if !strings.Contains(got, "==") {
		t.Errorf("capped run should keep two characters: %q", got)
	}
}

func TestCleanTextIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"multi\nline\n\npara----graph\t\ttabs",
		"exam-\nple with nbsp and �� noise ######",
		"한글 문서\n개행 처리\n\n두 번째 문단",
	}
	for _, in := range inputs {
		once := CleanText(in)
		twice := CleanText(once)
		if once != twice {
			t.Errorf("CleanText not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestCleanTextEmpty(t *testing.T) {
	if got := CleanText(""); got != "" {
		t.Errorf("CleanText(\"\") = %q, want empty", got)
	}
}
