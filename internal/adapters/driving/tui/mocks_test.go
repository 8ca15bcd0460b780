package tui

import (
	"context"
	"strings"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

type mockQueryService struct {
	answer    *domain.Answer
	answerErr error
	groups    []domain.PaperGroup
	findErr   error
	lastQuery string
}

func (m *mockQueryService) Retrieve(_ context.Context, _ string, _ int) ([]domain.Citation, error) {
	return nil, nil
}

func (m *mockQueryService) Answer(_ context.Context, query string) (*domain.Answer, error) {
	m.lastQuery = query
	if m.answerErr != nil {
		return nil, m.answerErr
	}
	return m.answer, nil
}

func (m *mockQueryService) FindPaper(_ context.Context, keyword string) ([]domain.PaperGroup, error) {
	m.lastQuery = keyword
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []domain.PaperGroup
	for _, g := range m.groups {
		if strings.Contains(strings.ToLower(g.Title), strings.ToLower(keyword)) {
			out = append(out, g)
		}
	}
	return out, nil
}

type mockLoader struct {
	svc driving.QueryService
	err error
}

func (m *mockLoader) Query(_ context.Context) (driving.QueryService, error) {
	return m.svc, m.err
}

type mockLibraryService struct {
	stats *domain.LibraryStats
	err   error
}

func (m *mockLibraryService) Stats(_ context.Context) (*domain.LibraryStats, error) {
	return m.stats, m.err
}

func (m *mockLibraryService) Papers(_ context.Context) ([]domain.PaperSummary, error) {
	return nil, m.err
}

var (
	_ driving.QueryService   = (*mockQueryService)(nil)
	_ driving.LibraryService = (*mockLibraryService)(nil)
	_ QueryLoader            = (*mockLoader)(nil)
)

func sampleAnswer() *domain.Answer {
	return &domain.Answer{
		Query: "what is attention?",
		Text:  "Attention weighs tokens [1].",
		Citations: []domain.Citation{
			{
				Chunk: domain.Chunk{
					Text: "Scaled dot-product attention",
					Meta: domain.ChunkMeta{Title: "Attention Is All You Need", Authors: "Vaswani", Year: "2017", Page: 3},
				},
				Score: 0.91,
			},
		},
	}
}

func sampleGroups() []domain.PaperGroup {
	return []domain.PaperGroup{
		{
			Title:      "BERT: Pre-training",
			Authors:    "Devlin",
			Year:       "2019",
			TotalPages: 16,
			Excerpts:   []domain.Excerpt{{Page: 1, Text: "We introduce BERT", Score: 0.8}},
		},
	}
}
