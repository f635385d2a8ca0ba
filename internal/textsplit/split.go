// Package textsplit slices large text into bounded chunks for LLM calls,
// preferring sentence boundaries and keeping overlap between neighbours.
package textsplit

import (
	"regexp"
	"strings"
)

// Sentence-ending punctuation, optionally followed by closing quotes or
// brackets, followed by whitespace.
var sentenceEnd = regexp.MustCompile(`[.!?][)\]"']*\s+`)

// Split cuts text into chunks of at most chunkSize characters.
//
// Strategy per window: cut at the last sentence boundary; failing that, at
// the last whitespace; failing that, hard-cut at chunkSize. Adjacent chunks
// share overlap characters so the model keeps context across boundaries.
// The cursor always moves forward, so the loop terminates on any input.
func Split(text string, chunkSize, overlap int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + chunkSize

		if end >= len(runes) {
			// Last chunk takes everything that is left.
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		window := runes[start:end]
		cut := findSentenceBoundary(string(window))
		if cut < 0 {
			if lastWS := lastSpace(window); lastWS > 0 {
				cut = lastWS
			} else {
				cut = chunkSize
			}
		}

		if chunk := strings.TrimSpace(string(runes[start : start+cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		advance := cut - overlap
		if advance <= 0 {
			// Never move backward or stall.
			advance = cut
		}
		start += advance
	}

	return chunks
}

// findSentenceBoundary returns the rune offset just after the last
// sentence-ending match in text, or -1 when there is none.
func findSentenceBoundary(text string) int {
	locs := sentenceEnd.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return -1
	}
	// Regexp offsets are in bytes; callers index runes.
	return len([]rune(text[:locs[len(locs)-1][1]]))
}

// lastSpace returns the rune index of the last space in window, or -1.
func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' {
			return i
		}
	}
	return -1
}

// ContinuationHint returns the trailing n characters of the previous chunk's
// result, used to ground the next chunk's LLM call in prior context.
func ContinuationHint(previous string, n int) string {
	if previous == "" {
		return ""
	}
	runes := []rune(previous)
	if len(runes) > n {
		runes = runes[len(runes)-n:]
	}
	return strings.TrimSpace(string(runes))
}
