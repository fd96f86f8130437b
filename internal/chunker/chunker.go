// Package chunker splits long text into pieces that fit a translation
// provider's request limit, preferring sentence and word boundaries.
package chunker

import "strings"

// DefaultMaxLength is the default maximum number of characters per chunk.
// Providers reject requests a little above 5000 characters.
const DefaultMaxLength = 4800

// TextChunker splits text into chunks of at most MaxLength runes.
type TextChunker struct {
	MaxLength int // default 4800
}

// NewTextChunker creates a TextChunker with default settings.
func NewTextChunker() *TextChunker {
	return &TextChunker{MaxLength: DefaultMaxLength}
}

// Split divides text using the chunker's MaxLength.
func (tc *TextChunker) Split(text string) []string {
	return Split(text, tc.MaxLength)
}

// Split divides text into chunks of at most maxLength runes. Text no longer
// than maxLength is returned as a single chunk, so empty text yields one
// empty chunk.
//
// Each cut is placed right after the last '.', '!' or '?' inside the window,
// else right after the last space, else at the window end. A boundary at the
// very start of the window is ignored so every chunk makes progress.
// Concatenating the chunks reproduces text exactly.
//
// A non-positive maxLength returns the whole text as one chunk.
func Split(text string, maxLength int) []string {
	runes := []rune(text)
	if maxLength <= 0 || len(runes) <= maxLength {
		return []string{text}
	}

	var chunks []string
	current := 0
	for current < len(runes) {
		end := current + maxLength
		if end >= len(runes) {
			chunks = append(chunks, string(runes[current:]))
			break
		}

		if cut := lastIndex(runes, current, end, isSentenceEnd); cut > current {
			end = cut + 1
		} else if cut := lastIndex(runes, current, end, isSpace); cut > current {
			end = cut + 1
		}

		chunks = append(chunks, string(runes[current:end]))
		current = end
	}
	return chunks
}

// Join rejoins translated chunks with a single space.
func Join(chunks []string) string {
	return strings.Join(chunks, " ")
}

// lastIndex returns the position of the last rune in runes[from:to] matching
// match, or -1.
func lastIndex(runes []rune, from, to int, match func(rune) bool) int {
	for i := to - 1; i >= from; i-- {
		if match(runes[i]) {
			return i
		}
	}
	return -1
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' '
}
