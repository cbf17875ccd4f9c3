package services

import (
	"strings"
	"testing"
)

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(900, 220)
	if got := c.Split(""); len(got) != 0 {
		t.Errorf("Split(\"\") produced %d chunks, want 0", len(got))
	}
	if got := c.Split("\n\n  \n\n"); len(got) != 0 {
		t.Errorf("Split(whitespace) produced %d chunks, want 0", len(got))
	}
}

func TestChunkerSingleParagraph(t *testing.T) {
	c := NewChunker(900, 220)
	got := c.Split("a short paragraph")
	if len(got) != 1 || got[0] != "a short paragraph" {
		t.Errorf("Split() = %v, want single unchanged chunk", got)
	}
}

func TestChunkerBoundsAndOverlap(t *testing.T) {
	// 20 paragraphs of 100 runes each, 2000 runes total.
	para := strings.Repeat("abcdefghij", 10)
	text := strings.Repeat(para+"\n\n", 20)

	c := NewChunker(900, 220)
	chunks := c.Split(text)

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks for 2000 runes at maxLen 900, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := len([]rune(ch)); n > 900+220 {
			t.Errorf("chunk %d has %d runes, exceeds maxLen+overlap", i, n)
		}
	}
	// Overlap: each chunk after the first starts with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := strings.TrimSpace(string(prev[len(prev)-220:]))
		if !strings.HasPrefix(chunks[i], tail) {
			t.Errorf("chunk %d does not start with predecessor tail", i)
		}
	}
}

func TestChunkerOversizedParagraphEmittedWhole(t *testing.T) {
	big := strings.Repeat("x", 1500)
	c := NewChunker(900, 220)
	chunks := c.Split("lead paragraph\n\n" + big)
	found := false
	for _, ch := range chunks {
		if strings.Contains(ch, big) {
			found = true
		}
	}
	if !found {
		t.Errorf("oversized paragraph was split or dropped")
	}
}

func TestChunkerRuneBasedLengths(t *testing.T) {
	// Hangul paragraphs; byte length is 3x rune length, chunking must use runes.
	para := strings.Repeat("가나다라마바사아자차", 10) // 100 runes
	text := strings.Repeat(para+"\n\n", 10)

	c := NewChunker(300, 50)
	chunks := c.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := len([]rune(ch)); n > 300+50 {
			t.Errorf("chunk %d has %d runes, exceeds rune budget", i, n)
		}
	}
}
