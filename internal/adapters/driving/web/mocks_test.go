package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

type mockQueryService struct {
	citations []domain.Citation
	answer    *domain.Answer
	groups    []domain.PaperGroup
	err       error
	lastTopK  int
}

func (m *mockQueryService) Retrieve(_ context.Context, _ string, topK int) ([]domain.Citation, error) {
	m.lastTopK = topK
	return m.citations, m.err
}

func (m *mockQueryService) Answer(_ context.Context, _ string) (*domain.Answer, error) {
	return m.answer, m.err
}

func (m *mockQueryService) FindPaper(_ context.Context, _ string) ([]domain.PaperGroup, error) {
	return m.groups, m.err
}

type mockLoader struct {
	svc driving.QueryService
	err error
}

func (m *mockLoader) Query(_ context.Context) (driving.QueryService, error) {
	return m.svc, m.err
}

type mockLibraryService struct {
	stats  *domain.LibraryStats
	papers []domain.PaperSummary
	err    error
}

func (m *mockLibraryService) Stats(_ context.Context) (*domain.LibraryStats, error) {
	return m.stats, m.err
}

func (m *mockLibraryService) Papers(_ context.Context) ([]domain.PaperSummary, error) {
	return m.papers, m.err
}

// blockingIndexer holds each run until release is closed.
type blockingIndexer struct {
	release chan struct{}
	force   chan bool
}

func (b *blockingIndexer) Index(_ context.Context, opts driving.IndexOptions) (*domain.IndexReport, error) {
	b.force <- opts.Force
	<-b.release
	return &domain.IndexReport{Indexed: 1}, nil
}

type mockIndexLoader struct {
	svc driving.IndexService
	err error
}

func (m *mockIndexLoader) Indexer(_ context.Context) (driving.IndexService, error) {
	return m.svc, m.err
}

var (
	_ driving.QueryService   = (*mockQueryService)(nil)
	_ driving.LibraryService = (*mockLibraryService)(nil)
	_ driving.IndexService   = (*blockingIndexer)(nil)
	_ QueryLoader            = (*mockLoader)(nil)
	_ IndexLoader            = (*mockIndexLoader)(nil)
)

func sampleLibrary() *mockLibraryService {
	return &mockLibraryService{
		stats: &domain.LibraryStats{
			TotalPapers: 2,
			TotalPages:  27,
			TotalChunks: 40,
			LastIndexed: "2024-05-01T10:00:00Z",
			ByYear:      map[string]int{"2017": 1, "2019": 1},
		},
		papers: []domain.PaperSummary{
			{Key: "BBBB2222", Title: "BERT", Authors: "Devlin", Year: "2019", Pages: 12},
			{Key: "AAAA1111", Title: "Attention", Authors: "Vaswani", Year: "2017", Pages: 15},
		},
	}
}

func newTestServer(t *testing.T, query *mockQueryService, library *mockLibraryService, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(&Ports{Query: &mockLoader{svc: query}, Library: library}, opts...)
	require.NoError(t, err)
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}
