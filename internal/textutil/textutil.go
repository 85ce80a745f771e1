// Package textutil provides the text-segmentation and overlap primitives used
// by the mixers and chains.
package textutil

import (
	"regexp"
	"strings"
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Sentences splits text on sentence-ending punctuation, trimming whitespace
// and dropping empty fragments.
func Sentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Paragraphs splits text on blank lines, trimming whitespace and dropping
// empty fragments.
func Paragraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WordSegments splits text into word-aligned segments of approximately
// maxLen characters each.
func WordSegments(text string, maxLen int) []string {
	if maxLen <= 0 {
		return []string{text}
	}

	words := strings.Fields(text)

	var segments []string
	var current []string
	currentLen := 0

	for _, word := range words {
		if currentLen+len(word)+1 <= maxLen || len(current) == 0 {
			current = append(current, word)
			currentLen += len(word) + 1
		} else {
			segments = append(segments, strings.Join(current, " "))
			current = []string{word}
			currentLen = len(word)
		}
	}
	if len(current) > 0 {
		segments = append(segments, strings.Join(current, " "))
	}

	return segments
}

// Jaccard returns the word-set Jaccard similarity of two texts, case
// insensitive. Empty texts yield 0.
func Jaccard(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection

	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

// QueryMarker is the prompt fragment that introduces the original query in
// chain and synthesis prompts. TruncateKeepQuery preserves everything from
// its last occurrence onward.
const QueryMarker = "Original query:"

// TruncateKeepQuery shortens prompt to at most maxLen characters. When the
// prompt contains QueryMarker, the trailing query segment is kept intact and
// a truncation notice is inserted before it.
func TruncateKeepQuery(prompt string, maxLen int) string {
	if maxLen <= 0 || len(prompt) <= maxLen {
		return prompt
	}

	idx := strings.LastIndex(prompt, QueryMarker)
	if idx < 0 {
		return prompt[:maxLen]
	}

	tail := "\n\n[Content truncated]\n\n" + prompt[idx:]
	head := maxLen - len(tail)
	if head < 0 {
		head = 0
	}

	return prompt[:head] + tail
}

// TruncateWithMarker shortens text to at most maxLen characters, appending a
// marker when truncation happened.
func TruncateWithMarker(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}

	const marker = "\n\n[...]"
	head := maxLen - len(marker)
	if head < 0 {
		head = 0
	}

	return text[:head] + marker
}
