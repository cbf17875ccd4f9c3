package services

import (
	"math"
	"unicode"
	"unicode/utf8"
)

// QualityScore rates extracted text in [0, 1]. The base signal is the ratio
// of letters and digits to total runes, divided by one plus the number of
// U+FFFD replacement characters. Very short texts are discounted with a
// length ramp from 0.8 to 1.0 at 500 runes. Empty input scores 0.
//
// Extraction backends are compared on this score; a primary result below
// the configured threshold triggers the secondary backend.
func QualityScore(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}

	alnum := 0
	replacements := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
		if r == '�' {
			replacements++
		}
	}

	score := float64(alnum) / float64(total)
	score /= 1 + float64(replacements)

	ramp := math.Min(float64(total)/500.0, 1.0)*0.2 + 0.8
	return score * ramp
}
