package driven

import (
	"context"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// BibliographyDatabase reads structured metadata from the reference
// manager's database. Implementations never modify the database.
type BibliographyDatabase interface {
	// Items returns every regular (non-attachment, non-note, non-deleted)
	// item keyed by item key.
	Items(ctx context.Context) (map[string]domain.CanonicalMetadata, error)

	// ItemByAttachmentKey returns the parent item of the attachment stored
	// under key. Returns domain.ErrNotFound for an unknown key.
	ItemByAttachmentKey(ctx context.Context, key string) (*domain.CanonicalMetadata, error)

	// Close releases resources.
	Close() error
}

// BibliographyOpener opens the database at path.
type BibliographyOpener func(ctx context.Context, path string) (BibliographyDatabase, error)
