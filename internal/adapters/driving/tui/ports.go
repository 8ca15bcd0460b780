// Package tui provides an interactive chat interface over the indexed library.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"context"

	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

// QueryLoader returns the query service, loading its backends on first use.
type QueryLoader interface {
	Query(ctx context.Context) (driving.QueryService, error)
}

// Ports aggregates all driving port interfaces required by the TUI.
type Ports struct {
	// Query provides answers and title lookups. It is loaded after the
	// interface starts so the first frame is not delayed by model setup.
	Query QueryLoader

	// Library reports what has been indexed.
	Library driving.LibraryService
}

// Validate ensures all required ports are set.
// Returns an error if any port is nil.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Library == nil {
		return ErrMissingLibraryService
	}
	return nil
}
