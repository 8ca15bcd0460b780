package driving

import (
	"context"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// IndexOptions configures one indexing run.
type IndexOptions struct {
	// Force re-indexes every document regardless of fingerprint.
	Force bool

	// Progress, when set, observes phase transitions.
	Progress func(domain.IndexProgress)
}

// IndexService builds and maintains the semantic index.
type IndexService interface {
	// Index runs the pipeline over the library storage root.
	Index(ctx context.Context, opts IndexOptions) (*domain.IndexReport, error)
}

// LibraryService reports on what has been indexed.
type LibraryService interface {
	// Stats returns aggregate statistics of the indexed library.
	Stats(ctx context.Context) (*domain.LibraryStats, error)

	// Papers lists indexed papers, newest first.
	Papers(ctx context.Context) ([]domain.PaperSummary, error)
}

// ExtractOptions configures metadata extraction.
type ExtractOptions struct {
	// Force bypasses the metadata cache.
	Force bool

	// Database overrides the configured library database path.
	Database string
}

// MetadataService extracts bibliographic metadata from the library database.
type MetadataService interface {
	// Extract returns all regular items keyed by item key, from cache unless
	// forced. A missing database yields an empty map and an error wrapping
	// domain.ErrLibraryNotFound, which callers treat as a warning.
	Extract(ctx context.Context, opts ExtractOptions) (map[string]domain.CanonicalMetadata, error)

	// ResolveAttachment returns the parent item of an attachment key.
	ResolveAttachment(ctx context.Context, key string) (*domain.CanonicalMetadata, error)
}
