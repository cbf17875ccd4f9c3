package services

import (
	"strings"
)

// Chunker splits normalized text into overlapping chunks along paragraph
// boundaries. Lengths are in runes, so multi-byte scripts chunk the same as
// Latin text.
type Chunker struct {
	maxLen  int
	overlap int
}

// NewChunker returns a chunker emitting chunks of at most maxLen runes,
// seeding each new chunk with the last overlap runes of the previous one.
func NewChunker(maxLen, overlap int) *Chunker {
	return &Chunker{maxLen: maxLen, overlap: overlap}
}

// Split greedily accumulates paragraphs into a buffer. When the next
// paragraph would not fit, the buffer is emitted and the tail overlap carries
// into the next chunk. A single paragraph longer than maxLen is emitted
// whole. Empty input yields no chunks.
func (c *Chunker) Split(text string) []string {
	paragraphs := paragraphBreakRegex.Split(text, -1)

	var chunks []string
	buf := ""
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if runeLen(buf)+runeLen(p)+1 <= c.maxLen {
			buf = strings.TrimSpace(buf + "\n\n" + p)
			continue
		}

		if buf != "" {
			chunks = append(chunks, buf)
		}
		keep := ""
		if r := []rune(buf); len(r) > c.overlap {
			keep = string(r[len(r)-c.overlap:])
		}
		buf = strings.TrimSpace(keep + "\n\n" + p)
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}
