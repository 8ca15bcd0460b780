package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

func citation(title string, page int, score float64, text string) domain.Citation {
	return domain.Citation{
		Chunk: domain.Chunk{
			Text: text,
			Meta: domain.ChunkMeta{Title: title, Authors: "Vaswani", Year: "2017", Page: page, TotalPages: 15},
		},
		Score: score,
	}
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns cited passages", func(t *testing.T) {
		query := &mockQueryService{citations: []domain.Citation{
			citation("Attention", 3, 0.91234, "self-attention"),
			citation("Attention", 5, 0.8, strings.Repeat("x", 600)),
		}}
		server := newTestServer(query, sampleLibrary())

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "attention", TopK: 2})
		require.NoError(t, err)

		assert.Equal(t, StatusSuccess, output.Status)
		assert.Equal(t, "attention", output.Query)
		assert.Equal(t, 2, output.TotalResults)
		require.Len(t, output.Results, 2)
		assert.Equal(t, "Attention", output.Results[0].Title)
		assert.Equal(t, 3, output.Results[0].Page)
		assert.Equal(t, 0.912, output.Results[0].RelevanceScore)
		assert.Equal(t, "self-attention", output.Results[0].Snippet)
		assert.Equal(t, strings.Repeat("x", SnippetLength)+"...", output.Results[1].Snippet)
		assert.Equal(t, 2, query.lastTopK)
	})

	t.Run("default top_k is 5", func(t *testing.T) {
		query := &mockQueryService{citations: []domain.Citation{citation("A", 1, 0.9, "a")}}
		server := newTestServer(query, sampleLibrary())

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "a"})
		require.NoError(t, err)
		assert.Equal(t, DefaultSearchTopK, query.lastTopK)
	})

	t.Run("top_k out of range", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, sampleLibrary())

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "a", TopK: 21})
		require.NoError(t, err)
		assert.Equal(t, StatusError, output.Status)
		assert.Contains(t, output.Message, "top_k")
	})

	t.Run("no results", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, sampleLibrary())

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "quantum"})
		require.NoError(t, err)
		assert.Equal(t, StatusNoResults, output.Status)
		assert.Equal(t, "quantum", output.Query)
	})

	t.Run("index not built is an error status", func(t *testing.T) {
		server := newTestServer(&mockQueryService{err: domain.ErrIndexNotBuilt}, sampleLibrary())

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "a"})
		require.NoError(t, err)
		assert.Equal(t, StatusError, output.Status)
		assert.Contains(t, output.Message, "localknowledge index")
	})

	t.Run("backend load failure is an error status", func(t *testing.T) {
		server, err := NewServer(&Ports{
			Query:   &mockLoader{err: domain.ErrEmbeddingUnavailable},
			Library: sampleLibrary(),
		})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "a"})
		require.NoError(t, err)
		assert.Equal(t, StatusError, output.Status)
		assert.Contains(t, output.Message, "embedding backend")
	})

	t.Run("empty query", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, sampleLibrary())

		_, output, err := server.handleSearch(ctx, nil, SearchInput{})
		require.NoError(t, err)
		assert.Equal(t, StatusError, output.Status)
	})
}

func TestServer_handleListPapers(t *testing.T) {
	ctx := context.Background()

	t.Run("lists newest first with histogram", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, sampleLibrary())

		_, output, err := server.handleListPapers(ctx, nil, ListPapersInput{})
		require.NoError(t, err)

		assert.Equal(t, StatusSuccess, output.Status)
		assert.Equal(t, 3, output.TotalInLibrary)
		assert.Equal(t, 3, output.Returned)
		assert.Equal(t, map[string]int{"2019": 1, "2017": 2}, output.PapersByYear)
		assert.Equal(t, "BBBB2222", output.Papers[0].ZoteroKey)
	})

	t.Run("year filter and limit", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, sampleLibrary())

		_, output, err := server.handleListPapers(ctx, nil, ListPapersInput{Year: "2017", Limit: 1})
		require.NoError(t, err)

		assert.Equal(t, "2017", output.YearFilter)
		assert.Equal(t, 1, output.Returned)
		assert.Equal(t, 3, output.TotalInLibrary)
		assert.Equal(t, "Transformer-XL", output.Papers[0].Title)
	})

	t.Run("year with no papers", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, sampleLibrary())

		_, output, err := server.handleListPapers(ctx, nil, ListPapersInput{Year: "1999"})
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, output.Status)
		assert.Zero(t, output.Returned)
		assert.NotNil(t, output.Papers)
	})

	t.Run("limit out of range", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, sampleLibrary())

		_, output, err := server.handleListPapers(ctx, nil, ListPapersInput{Limit: 101})
		require.NoError(t, err)
		assert.Equal(t, StatusError, output.Status)
	})

	t.Run("empty library", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, &mockLibraryService{})

		_, output, err := server.handleListPapers(ctx, nil, ListPapersInput{})
		require.NoError(t, err)
		assert.Equal(t, StatusError, output.Status)
		assert.Contains(t, output.Message, "not been indexed")
	})

	t.Run("state read failure", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, &mockLibraryService{err: errors.New("corrupt state")})

		_, output, err := server.handleListPapers(ctx, nil, ListPapersInput{})
		require.NoError(t, err)
		assert.Equal(t, StatusError, output.Status)
		assert.Equal(t, "corrupt state", output.Message)
	})
}

func TestServer_handleGetPaperContent(t *testing.T) {
	ctx := context.Background()

	t.Run("returns grouped excerpts", func(t *testing.T) {
		query := &mockQueryService{groups: []domain.PaperGroup{{
			Title:      "Attention Is All You Need",
			Authors:    "Vaswani",
			Year:       "2017",
			TotalPages: 15,
			Excerpts: []domain.Excerpt{
				{Page: 3, Text: "scaled dot-product", Score: 0.9},
				{Page: 5, Text: "multi-head", Score: 0.8},
			},
		}}}
		server := newTestServer(query, sampleLibrary())

		_, output, err := server.handleGetPaperContent(ctx, nil, GetPaperInput{TitleKeyword: "attention"})
		require.NoError(t, err)

		assert.Equal(t, StatusSuccess, output.Status)
		require.Len(t, output.Papers, 1)
		assert.Equal(t, 15, output.Papers[0].TotalPages)
		assert.Equal(t, []ExcerptOutput{
			{Page: 3, Content: "scaled dot-product"},
			{Page: 5, Content: "multi-head"},
		}, output.Papers[0].Excerpts)
	})

	t.Run("not found", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, sampleLibrary())

		_, output, err := server.handleGetPaperContent(ctx, nil, GetPaperInput{TitleKeyword: "diffusion"})
		require.NoError(t, err)
		assert.Equal(t, StatusNotFound, output.Status)
		assert.Contains(t, output.Message, "diffusion")
	})

	t.Run("empty keyword", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, sampleLibrary())

		_, output, err := server.handleGetPaperContent(ctx, nil, GetPaperInput{})
		require.NoError(t, err)
		assert.Equal(t, StatusError, output.Status)
		assert.Contains(t, output.Message, "invalid input")
	})
}

func TestServer_handleStats(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, sampleLibrary())

		_, output, err := server.handleStats(ctx, nil, StatsInput{})
		require.NoError(t, err)

		assert.Equal(t, StatusSuccess, output.Status)
		assert.Equal(t, 3, output.TotalPapers)
		assert.Equal(t, 40, output.TotalPages)
		assert.Equal(t, 120, output.TotalChunks)
		assert.Equal(t, "2024-05-01T10:00:00Z", output.LastIndexed)
	})

	t.Run("index not built", func(t *testing.T) {
		server := newTestServer(&mockQueryService{}, &mockLibraryService{})

		_, output, err := server.handleStats(ctx, nil, StatsInput{})
		require.NoError(t, err)
		assert.Equal(t, StatusError, output.Status)
	})
}
