package services

import (
	"regexp"
	"strings"

	"ia-assistant-platform/models"
)

// Latin letters, digits and Hangul (syllables, jamo, compatibility jamo).
var queryTokenRegex = regexp.MustCompile(`[0-9A-Za-z\x{1100}-\x{11FF}\x{3130}-\x{318F}\x{AC00}-\x{D7A3}]+`)

// QueryTokens extracts lowercase search tokens from a question: runs of
// letters and digits at least 2 runes long, deduplicated in order.
func QueryTokens(question string) []string {
	raw := queryTokenRegex.FindAllString(strings.ToLower(question), -1)
	seen := make(map[string]bool, len(raw))
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len([]rune(t)) < 2 || seen[t] {
			continue
		}
		seen[t] = true
		tokens = append(tokens, t)
	}
	return tokens
}

// RelevantEnough decides whether retrieved hits actually concern the
// question, guarding against the store returning its least-bad matches for
// an off-topic query. A hit matches when its title or chunk (lowercased)
// contains any query token as a substring. The top topK hits must produce at
// least minMatches matches; with a single hit one match suffices. A question
// with no extractable tokens is never relevant.
func RelevantEnough(question string, hits []models.SearchHit, topK, minMatches int) bool {
	tokens := QueryTokens(question)
	if len(tokens) == 0 {
		return false
	}

	k := topK
	if k > len(hits) {
		k = len(hits)
	}
	if k <= 0 {
		return false
	}

	matches := 0
	for _, hit := range hits[:k] {
		haystack := strings.ToLower(hit.Title + " " + hit.Chunk)
		for _, t := range tokens {
			if strings.Contains(haystack, t) {
				matches++
				break
			}
		}
	}

	if k == 1 {
		return matches >= 1
	}
	return matches >= minMatches
}
