// Package chunker splits page text into overlapping fixed-size windows.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PageChunker = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// Processor splits page text into chunks of at most chunkSize characters,
// each sharing overlap characters with its predecessor.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a new chunker processor with the given options.
// It returns an error wrapping domain.ErrConfig unless 0 <= overlap < size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", p.chunkSize, domain.ErrConfig)
	}
	if p.overlap < 0 || p.overlap >= p.chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d): %w", p.overlap, p.chunkSize, domain.ErrConfig)
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits one page into chunks carrying the page's provenance.
// Whitespace-only pages produce no chunks.
func (p *Processor) Process(ctx context.Context, page domain.Page) ([]domain.Chunk, error) {
	text := []rune(strings.TrimSpace(page.Text))
	if len(text) == 0 {
		return nil, nil
	}

	step := p.chunkSize - p.overlap
	chunks := make([]domain.Chunk, 0, len(text)/step+1)

	start := 0
	for start < len(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = breakPoint(text, start, end)
		}

		if content := strings.TrimSpace(string(text[start:end])); content != "" {
			chunks = append(chunks, domain.Chunk{
				ID:       uuid.New().String(),
				Text:     content,
				Position: len(chunks),
				Meta:     page.Meta,
			})
		}

		if end == len(text) {
			break
		}

		next := end - p.overlap
		if next <= start {
			next = start + step
		}
		start = next
	}

	return chunks, nil
}

// breakPoint moves end back to the last whitespace within the final fifth
// of the window so words are not split. It returns end unchanged when the
// tail has no whitespace.
func breakPoint(text []rune, start, end int) int {
	limit := end - (end-start)/5
	for i := end; i > limit; i-- {
		if unicode.IsSpace(text[i-1]) {
			return i
		}
	}
	return end
}
