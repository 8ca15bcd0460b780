package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// Tool result statuses. Tools report failures through the status field and
// never fail at the protocol level.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusNoResults = "no_results"
	StatusNotFound  = "not_found"
)

// Tool limits.
const (
	DefaultSearchTopK = 5
	MaxSearchTopK     = 20
	DefaultListLimit  = 20
	MaxListLimit      = 100
	SnippetLength     = 500
)

// SearchInput is the input schema for the zotero_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"search query: keywords, a question or a topic description"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of passages to return, 1 to 20 (default 5)"`
}

// SearchOutput is the output schema for the zotero_search tool.
type SearchOutput struct {
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	Query        string         `json:"query,omitempty"`
	TotalResults int            `json:"total_results"`
	Results      []SearchResult `json:"results,omitempty"`
}

// SearchResult is one cited passage.
type SearchResult struct {
	Title          string  `json:"title"`
	Authors        string  `json:"authors"`
	Year           string  `json:"year"`
	Page           int     `json:"page"`
	RelevanceScore float64 `json:"relevance_score"`
	Snippet        string  `json:"snippet"`
}

// ListPapersInput is the input schema for the zotero_list_papers tool.
type ListPapersInput struct {
	Year  string `json:"year,omitempty" jsonschema:"only list papers from this year, e.g. 2024"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of papers, 1 to 100 (default 20)"`
}

// ListPapersOutput is the output schema for the zotero_list_papers tool.
type ListPapersOutput struct {
	Status         string         `json:"status"`
	Message        string         `json:"message,omitempty"`
	TotalInLibrary int            `json:"total_in_library"`
	Returned       int            `json:"returned"`
	YearFilter     string         `json:"year_filter,omitempty"`
	PapersByYear   map[string]int `json:"papers_by_year,omitempty"`
	Papers         []PaperOutput  `json:"papers,omitempty"`
}

// PaperOutput is one indexed paper.
type PaperOutput struct {
	Title     string `json:"title"`
	Authors   string `json:"authors"`
	Year      string `json:"year"`
	Pages     int    `json:"pages"`
	ZoteroKey string `json:"zotero_key"`
}

// GetPaperInput is the input schema for the zotero_get_paper_content tool.
type GetPaperInput struct {
	TitleKeyword string `json:"title_keyword" jsonschema:"keyword contained in the paper title"`
}

// GetPaperOutput is the output schema for the zotero_get_paper_content tool.
type GetPaperOutput struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Papers  []PaperContent `json:"papers,omitempty"`
}

// PaperContent groups the retrieved excerpts of one paper.
type PaperContent struct {
	Title      string          `json:"title"`
	Authors    string          `json:"authors"`
	Year       string          `json:"year"`
	TotalPages int             `json:"total_pages"`
	Excerpts   []ExcerptOutput `json:"excerpts"`
}

// ExcerptOutput is one page-anchored passage.
type ExcerptOutput struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// StatsInput is the empty input of the zotero_stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the zotero_stats tool.
type StatsOutput struct {
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	TotalPapers  int            `json:"total_papers"`
	TotalPages   int            `json:"total_pages"`
	TotalChunks  int            `json:"total_chunks"`
	LastIndexed  string         `json:"last_indexed,omitempty"`
	PapersByYear map[string]int `json:"papers_by_year,omitempty"`
}

func readOnly(title string) *mcp.ToolAnnotations {
	closed := false
	return &mcp.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    true,
		IdempotentHint:  true,
		DestructiveHint: &closed,
		OpenWorldHint:   &closed,
	}
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "zotero_search",
		Description: "Semantic search over the user's paper library. Returns the most relevant " +
			"passages with title, authors, year, page and relevance score.",
		Annotations: readOnly("Search Zotero Literature"),
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "zotero_list_papers",
		Description: "List indexed papers, newest first, optionally filtered by year.",
		Annotations: readOnly("List Papers in Library"),
	}, s.handleListPapers)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "zotero_get_paper_content",
		Description: "Find papers whose title contains a keyword and return their most relevant excerpts by page.",
		Annotations: readOnly("Get Paper Content"),
	}, s.handleGetPaperContent)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "zotero_stats",
		Description: "Library statistics: papers, pages, chunks, last index time and papers per year.",
		Annotations: readOnly("Library Statistics"),
	}, s.handleStats)
}

// handleSearch handles the zotero_search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{Status: StatusError, Message: "query is required"}, nil
	}
	topK := input.TopK
	if topK == 0 {
		topK = DefaultSearchTopK
	}
	if topK < 1 || topK > MaxSearchTopK {
		return nil, SearchOutput{
			Status:  StatusError,
			Message: fmt.Sprintf("top_k must be between 1 and %d", MaxSearchTopK),
		}, nil
	}

	query, err := s.ports.Query.Query(ctx)
	if err != nil {
		return nil, SearchOutput{Status: StatusError, Message: errorMessage(err)}, nil
	}
	citations, err := query.Retrieve(ctx, input.Query, topK)
	if err != nil {
		return nil, SearchOutput{Status: StatusError, Message: errorMessage(err)}, nil
	}

	if len(citations) == 0 {
		return nil, SearchOutput{
			Status:  StatusNoResults,
			Message: "no relevant passages found",
			Query:   input.Query,
		}, nil
	}

	output := SearchOutput{
		Status:       StatusSuccess,
		Query:        input.Query,
		TotalResults: len(citations),
		Results:      make([]SearchResult, len(citations)),
	}
	for i, c := range citations {
		m := c.Chunk.Meta
		output.Results[i] = SearchResult{
			Title:          m.Title,
			Authors:        m.Authors,
			Year:           m.Year,
			Page:           m.Page,
			RelevanceScore: domain.RoundScore(c.Score),
			Snippet:        c.Excerpt(SnippetLength),
		}
	}
	return nil, output, nil
}

// handleListPapers handles the zotero_list_papers tool invocation.
func (s *Server) handleListPapers(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListPapersInput,
) (*mcp.CallToolResult, ListPapersOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, ListPapersOutput{
			Status:  StatusError,
			Message: fmt.Sprintf("limit must be between 1 and %d", MaxListLimit),
		}, nil
	}

	stats, err := s.ports.Library.Stats(ctx)
	if err != nil {
		return nil, ListPapersOutput{Status: StatusError, Message: errorMessage(err)}, nil
	}
	if stats.TotalPapers == 0 {
		return nil, ListPapersOutput{Status: StatusError, Message: errorMessage(domain.ErrIndexNotBuilt)}, nil
	}

	papers, err := s.ports.Library.Papers(ctx)
	if err != nil {
		return nil, ListPapersOutput{Status: StatusError, Message: errorMessage(err)}, nil
	}

	output := ListPapersOutput{
		Status:         StatusSuccess,
		TotalInLibrary: stats.TotalPapers,
		YearFilter:     input.Year,
		PapersByYear:   stats.ByYear,
		Papers:         []PaperOutput{},
	}
	for _, p := range papers {
		if input.Year != "" && p.Year != input.Year {
			continue
		}
		if len(output.Papers) == limit {
			break
		}
		output.Papers = append(output.Papers, PaperOutput{
			Title:     p.Title,
			Authors:   p.Authors,
			Year:      p.Year,
			Pages:     p.Pages,
			ZoteroKey: p.Key,
		})
	}
	output.Returned = len(output.Papers)
	return nil, output, nil
}

// handleGetPaperContent handles the zotero_get_paper_content tool invocation.
func (s *Server) handleGetPaperContent(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetPaperInput,
) (*mcp.CallToolResult, GetPaperOutput, error) {
	query, err := s.ports.Query.Query(ctx)
	if err != nil {
		return nil, GetPaperOutput{Status: StatusError, Message: errorMessage(err)}, nil
	}

	groups, err := query.FindPaper(ctx, input.TitleKeyword)
	if err != nil {
		return nil, GetPaperOutput{Status: StatusError, Message: errorMessage(err)}, nil
	}
	if len(groups) == 0 {
		return nil, GetPaperOutput{
			Status:  StatusNotFound,
			Message: fmt.Sprintf("no paper title contains %q", input.TitleKeyword),
		}, nil
	}

	output := GetPaperOutput{Status: StatusSuccess, Papers: make([]PaperContent, len(groups))}
	for i, g := range groups {
		paper := PaperContent{
			Title:      g.Title,
			Authors:    g.Authors,
			Year:       g.Year,
			TotalPages: g.TotalPages,
			Excerpts:   make([]ExcerptOutput, len(g.Excerpts)),
		}
		for j, e := range g.Excerpts {
			paper.Excerpts[j] = ExcerptOutput{Page: e.Page, Content: e.Text}
		}
		output.Papers[i] = paper
	}
	return nil, output, nil
}

// handleStats handles the zotero_stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.Library.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{Status: StatusError, Message: errorMessage(err)}, nil
	}
	if stats.TotalPapers == 0 && stats.LastIndexed == "" {
		return nil, StatsOutput{Status: StatusError, Message: errorMessage(domain.ErrIndexNotBuilt)}, nil
	}

	return nil, StatsOutput{
		Status:       StatusSuccess,
		TotalPapers:  stats.TotalPapers,
		TotalPages:   stats.TotalPages,
		TotalChunks:  stats.TotalChunks,
		LastIndexed:  stats.LastIndexed,
		PapersByYear: stats.ByYear,
	}, nil
}

// errorMessage turns core errors into guidance for the calling agent.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrIndexNotBuilt):
		return "the library has not been indexed yet; run `localknowledge index` first"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "the embedding backend is unavailable: " + err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid input: " + err.Error()
	default:
		return err.Error()
	}
}
