package driven

import (
	"context"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// DocumentLocator enumerates the documents of the library storage root.
type DocumentLocator interface {
	// Scan returns every document in an identity-key directory.
	// An absent root yields an empty list.
	Scan() ([]domain.LibraryItem, error)
}

// PageChunker splits one page into overlapping chunks that carry the
// page's provenance.
type PageChunker interface {
	Process(ctx context.Context, page domain.Page) ([]domain.Chunk, error)
}
