package services

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	paragraphBreakRegex = regexp.MustCompile(`\n\s*\n`)
	hyphenBreakRegex    = regexp.MustCompile(`(\p{L})-\n(\p{L})`)
	spaceRunRegex       = regexp.MustCompile(`[ \t]+`)
	replacementRunRegex = regexp.MustCompile("�+")
)

// Punctuation characters whose long runs are decorative (rules, separators)
// rather than content.
const runPunct = "-=_*#~.·"

// CleanText normalizes extracted text for chunking and indexing.
// It applies Unicode NFKC, drops non-printable controls (keeping newline and
// tab), turns NBSP and zero-width characters into spaces, collapses
// replacement-character runs, caps decorative punctuation runs, joins
// hyphenated line breaks and single newlines inside paragraphs, and collapses
// intra-line whitespace. Blank-line paragraph breaks are preserved.
// The function is pure and idempotent.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\u00a0' || r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff':
			b.WriteRune(' ')
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	text = b.String()

	text = replacementRunRegex.ReplaceAllString(text, "�")
	text = hyphenBreakRegex.ReplaceAllString(text, "$1$2")
	text = collapsePunctRuns(text)

	// Join single newlines inside paragraphs; blank lines separate paragraphs.
	paragraphs := paragraphBreakRegex.Split(text, -1)
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		lines := strings.Split(p, "\n")
		for i := range lines {
			lines[i] = strings.TrimSpace(spaceRunRegex.ReplaceAllString(lines[i], " "))
		}
		joined := strings.TrimSpace(strings.Join(lines, " "))
		joined = spaceRunRegex.ReplaceAllString(joined, " ")
		if joined != "" {
			out = append(out, joined)
		}
	}
	return strings.Join(out, "\n\n")
}

// collapsePunctRuns caps runs of 4+ identical decorative punctuation
// characters at 2. Shorter runs pass through, so the result is stable under
// repeated application. Written as a loop because RE2 has no backreferences.
func collapsePunctRuns(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		j := i + 1
		for j < len(runes) && runes[j] == r {
			j++
		}
		runLen := j - i
		if runLen >= 4 && strings.ContainsRune(runPunct, r) {
			b.WriteRune(r)
			b.WriteRune(r)
		} else {
			for n := 0; n < runLen; n++ {
				b.WriteRune(r)
			}
		}
		i = j
	}
	return b.String()
}
