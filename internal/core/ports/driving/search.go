package driving

import (
	"context"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// QueryService provides retrieval and answer synthesis to external actors.
type QueryService interface {
	// Retrieve returns up to topK citations scoring at or above the
	// similarity threshold, in descending score order. topK <= 0 uses the
	// configured default. An empty slice means no results.
	Retrieve(ctx context.Context, query string, topK int) ([]domain.Citation, error)

	// Answer synthesises a response grounded in retrieved chunks.
	Answer(ctx context.Context, query string) (*domain.Answer, error)

	// FindPaper groups retrieved excerpts by paper title for papers whose
	// title contains keyword (case-insensitive).
	FindPaper(ctx context.Context, keyword string) ([]domain.PaperGroup, error)
}
