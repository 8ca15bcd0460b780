package mcp

import (
	"context"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	citations []domain.Citation
	groups    []domain.PaperGroup
	err       error
	lastTopK  int
	lastQuery string
}

func (m *mockQueryService) Retrieve(_ context.Context, query string, topK int) ([]domain.Citation, error) {
	m.lastQuery = query
	m.lastTopK = topK
	return m.citations, m.err
}

func (m *mockQueryService) Answer(_ context.Context, query string) (*domain.Answer, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Answer{Query: query, Text: "answer", Citations: m.citations}, nil
}

func (m *mockQueryService) FindPaper(_ context.Context, keyword string) ([]domain.PaperGroup, error) {
	m.lastQuery = keyword
	if keyword == "" {
		return nil, domain.ErrInvalidInput
	}
	return m.groups, m.err
}

// mockLoader is a QueryLoader that can fail to load.
type mockLoader struct {
	query *mockQueryService
	err   error
}

func (m *mockLoader) Query(_ context.Context) (driving.QueryService, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.query, nil
}

// mockLibraryService is a mock implementation of driving.LibraryService.
type mockLibraryService struct {
	stats  *domain.LibraryStats
	papers []domain.PaperSummary
	err    error
}

func (m *mockLibraryService) Stats(_ context.Context) (*domain.LibraryStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.stats == nil {
		return &domain.LibraryStats{ByYear: map[string]int{}}, nil
	}
	return m.stats, nil
}

func (m *mockLibraryService) Papers(_ context.Context) ([]domain.PaperSummary, error) {
	return m.papers, m.err
}

func sampleLibrary() *mockLibraryService {
	return &mockLibraryService{
		stats: &domain.LibraryStats{
			TotalPapers: 3,
			TotalPages:  40,
			TotalChunks: 120,
			LastIndexed: "2024-05-01T10:00:00Z",
			ByYear:      map[string]int{"2019": 1, "2017": 2},
		},
		papers: []domain.PaperSummary{
			{Key: "BBBB2222", Title: "BERT", Authors: "Devlin", Year: "2019", Pages: 16},
			{Key: "CCCC3333", Title: "Transformer-XL", Authors: "Dai", Year: "2017", Pages: 12},
			{Key: "AAAA1111", Title: "Attention", Authors: "Vaswani", Year: "2017", Pages: 12},
		},
	}
}

func newTestServer(query *mockQueryService, library *mockLibraryService) *Server {
	server, err := NewServer(&Ports{Query: &mockLoader{query: query}, Library: library})
	if err != nil {
		panic(err)
	}
	return server
}
