package services

import (
	"context"
	"fmt"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

// Ensure LibraryService implements the interface.
var _ driving.LibraryService = (*LibraryService)(nil)

// LibraryService reports on indexed papers from the change-detection state.
type LibraryService struct {
	state  driven.IndexStateStore
	counts ChunkCounter
}

// ChunkCounter counts stored chunks.
type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

// NewLibraryService creates a library service.
// The counts parameter is optional (can be nil); TotalChunks is then zero.
func NewLibraryService(state driven.IndexStateStore, counts ChunkCounter) *LibraryService {
	return &LibraryService{state: state, counts: counts}
}

// Stats returns aggregate statistics of the indexed library.
func (s *LibraryService) Stats(ctx context.Context) (*domain.LibraryStats, error) {
	state, err := s.state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index state: %w", err)
	}

	stats := domain.ComputeStats(state)
	if s.counts != nil {
		n, err := s.counts.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count chunks: %w", err)
		}
		stats.TotalChunks = n
	}
	return &stats, nil
}

// Papers lists indexed papers, newest first.
func (s *LibraryService) Papers(ctx context.Context) ([]domain.PaperSummary, error) {
	state, err := s.state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index state: %w", err)
	}
	return domain.Papers(state), nil
}
