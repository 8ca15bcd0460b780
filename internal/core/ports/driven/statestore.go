package driven

import (
	"context"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// IndexStateStore persists the change-detection cache.
type IndexStateStore interface {
	// Load returns the persisted state, or an empty state when none exists.
	Load(ctx context.Context) (*domain.IndexState, error)

	// Save replaces the persisted state.
	Save(ctx context.Context, state *domain.IndexState) error
}

// MetadataCache persists extracted bibliographic metadata.
type MetadataCache interface {
	// Load returns the cached records. ok is false when no cache exists.
	Load(ctx context.Context) (records map[string]domain.CanonicalMetadata, ok bool, err error)

	// Save replaces the cached records.
	Save(ctx context.Context, records map[string]domain.CanonicalMetadata) error
}
