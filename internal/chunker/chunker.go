package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned when the chunking parameters cannot produce
// a covering sequence of chunks.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunk is a contiguous span of a document's text. Offsets are rune offsets
// into the normalized document text.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// Chunker splits document text into fixed-size overlapping windows.
// Each chunk after the first begins Overlap runes before the previous
// chunk's end, so consecutive chunks share Overlap runes of context.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker with the given window size and overlap (in runes).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split produces an ordered sequence of chunks covering text with no gaps.
// Empty or whitespace-only input yields an empty sequence.
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	stride := c.size - c.overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Size returns the configured window size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }
