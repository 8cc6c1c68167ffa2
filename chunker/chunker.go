package chunker

import (
	"errors"
	"fmt"
	"unicode"

	"legaldoc-backend/models"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunker splits document text into overlapping chunks of a fixed rune size
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker after checking that 0 <= overlap < size
func New(size, overlap int) (*Chunker, error) {
	if err := checkConfig(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured chunk size in runes
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in runes
func (c *Chunker) Overlap() int { return c.overlap }

// Split splits text using the chunker's configuration
func (c *Chunker) Split(text string) []models.DocumentChunk {
	chunks, _ := Split(text, c.size, c.overlap)
	return chunks
}

// Split cuts text into chunks of at most size runes, where each chunk after
// the first starts exactly overlap runes before the end of its predecessor.
// Near the size limit a paragraph break is preferred, then a sentence end.
// Dropping the first overlap runes of every chunk but the first and joining
// the rest reproduces text exactly.
func Split(text string, size, overlap int) ([]models.DocumentChunk, error) {
	if err := checkConfig(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	n := len(runes)
	chunks := make([]models.DocumentChunk, 0)
	if n == 0 {
		return chunks, nil
	}

	lookback := min(size/5, (size-overlap)/2)

	start := 0
	for {
		end := start + size
		if end >= n {
			chunks = append(chunks, newChunk(runes, start, n, len(chunks)))
			break
		}
		end = boundary(runes, end, lookback)
		chunks = append(chunks, newChunk(runes, start, end, len(chunks)))
		start = end - overlap
	}

	return chunks, nil
}

func checkConfig(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidConfig, overlap, size)
	}
	return nil
}

// boundary picks the cut position in [end-lookback, end]. The window never
// reaches back past start+overlap, so every chunk advances the cursor.
func boundary(runes []rune, end, lookback int) int {
	floor := end - lookback

	for p := end; p >= floor; p-- {
		if p >= 2 && runes[p-1] == '\n' && runes[p-2] == '\n' {
			return p
		}
	}
	for p := end; p >= floor; p-- {
		if p >= 1 && isSentenceEnd(runes[p-1]) && unicode.IsSpace(runes[p]) {
			return p
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func newChunk(runes []rune, start, end, index int) models.DocumentChunk {
	return models.DocumentChunk{
		Text:         string(runes[start:end]),
		Index:        index,
		Offset:       start,
		SourceLength: len(runes),
	}
}
