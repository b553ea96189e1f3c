// Package chunker splits extracted document text into overlapping windows
// that preferentially end on sentence boundaries.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Options configures chunking.
type Options struct {
	Size    int
	Overlap int
}

// Default returns the standard window of 1000 characters with 200 of overlap.
func Default() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate rejects option combinations that cannot make progress.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return domain.NewValidationError("chunk_size", fmt.Sprint(o.Size), domain.ErrInvalidInput)
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		return domain.NewValidationError("chunk_overlap", fmt.Sprint(o.Overlap), domain.ErrInvalidInput)
	}
	return nil
}

// Split is Chunk with validated options.
func (o Options) Split(text string) ([]string, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return Chunk(text, o.Size, o.Overlap), nil
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '\n'
}

// Chunk splits text into windows of at most size characters. Callers must
// ensure 0 <= overlap < size; Options.Split does that check.
//
// When a window does not reach the end of the text it is shrunk to end just
// after the last sentence terminator in its upper half, or failing that just
// after the last whitespace there, so words are not cut. The next window
// starts overlap characters before the previous end.
func Chunk(text string, size, overlap int) []string {
	chunks := []string{}
	if strings.TrimSpace(text) == "" || size <= 0 {
		return chunks
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	n := len(runes)
	start := 0
	for start < n {
		end := start + size
		if end < n {
			end = boundary(runes, start, end, size)
		} else {
			end = n
		}

		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			// A shrunk window shorter than the overlap would rewind.
			next = end
		}
		start = next
	}
	return chunks
}

// boundary returns the shrunk end of the window [start, end). It prefers a
// sentence terminator past the midpoint, then whitespace, then a hard cut.
func boundary(runes []rune, start, end, size int) int {
	mid := start + size/2
	for i := end - 1; i > mid; i-- {
		if isTerminal(runes[i]) {
			return i + 1
		}
	}
	for i := end - 1; i > mid; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

// Clean normalises extracted text: NUL bytes are dropped, runs of spaces and
// tabs inside a line collapse to one space and blank lines are removed.
// Newlines survive so they still count as sentence boundaries.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
