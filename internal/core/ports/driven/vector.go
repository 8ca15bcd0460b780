package driven

import (
	"context"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// VectorStore persists embedded chunks and answers similarity queries.
// Chunks carry their full provenance so a hit can be cited without any
// other lookup.
type VectorStore interface {
	// Replace atomically removes every chunk belonging to the given identity
	// keys and inserts the new chunks. A failure leaves the store unchanged.
	Replace(ctx context.Context, keys []string, chunks []domain.Chunk) error

	// Search returns up to k chunks most similar to the query vector,
	// ordered by descending similarity.
	Search(ctx context.Context, query []float32, k int) ([]domain.Citation, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
