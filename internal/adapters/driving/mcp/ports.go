package mcp

import (
	"context"

	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

// QueryLoader returns the query service, loading its backends on first use.
type QueryLoader interface {
	Query(ctx context.Context) (driving.QueryService, error)
}

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query provides retrieval. Backends are loaded by the first tool call
	// that needs them, so the server starts without contacting them.
	Query QueryLoader

	// Library reports indexed papers and statistics.
	Library driving.LibraryService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Library == nil {
		return ErrMissingLibraryService
	}
	return nil
}

// StaticQuery adapts an already loaded query service.
type StaticQuery struct {
	Service driving.QueryService
}

// Query returns the wrapped service.
func (s StaticQuery) Query(_ context.Context) (driving.QueryService, error) {
	return s.Service, nil
}
