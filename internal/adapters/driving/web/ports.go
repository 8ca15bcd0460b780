// Package web serves the JSON chat API over the indexed library.
// It implements a driving adapter following hexagonal architecture principles.
package web

import (
	"context"

	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

// QueryLoader returns the query service, loading its backends on first use.
type QueryLoader interface {
	Query(ctx context.Context) (driving.QueryService, error)
}

// IndexLoader returns the indexing service, loading its backends on first use.
type IndexLoader interface {
	Indexer(ctx context.Context) (driving.IndexService, error)
}

// Ports aggregates all driving port interfaces required by the HTTP API.
type Ports struct {
	// Query provides answers, retrieval and title lookups.
	Query QueryLoader

	// Library reports indexed papers and statistics.
	Library driving.LibraryService

	// Index, when set, enables POST /api/index.
	Index IndexLoader
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Library == nil {
		return ErrMissingLibraryService
	}
	return nil
}
