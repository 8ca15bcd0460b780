package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// Response limits.
const (
	ExcerptLength = 200
	MaxTopK       = 20
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

// FindRequest is the body of POST /api/find.
type FindRequest struct {
	Keyword string `json:"keyword" binding:"required"`
}

// IndexRequest is the optional body of POST /api/index.
type IndexRequest struct {
	Force bool `json:"force"`
}

// CitationResponse is one cited passage.
type CitationResponse struct {
	Title   string  `json:"title"`
	Authors string  `json:"authors"`
	Year    string  `json:"year"`
	Page    int     `json:"page"`
	Score   float64 `json:"score"`
	Excerpt string  `json:"excerpt"`
}

// AnswerResponse is the reply of POST /api/query.
type AnswerResponse struct {
	Query     string             `json:"query"`
	Answer    string             `json:"answer"`
	Markdown  string             `json:"markdown"`
	Citations []CitationResponse `json:"citations"`
}

// ExcerptResponse is one passage of a found paper.
type ExcerptResponse struct {
	Page  int     `json:"page"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// PaperGroupResponse is one paper matched by POST /api/find.
type PaperGroupResponse struct {
	Title      string            `json:"title"`
	Authors    string            `json:"authors"`
	Year       string            `json:"year"`
	TotalPages int               `json:"total_pages"`
	Excerpts   []ExcerptResponse `json:"excerpts"`
}

// StatsResponse is the reply of GET /api/stats.
type StatsResponse struct {
	TotalPapers int            `json:"total_papers"`
	TotalPages  int            `json:"total_pages"`
	TotalChunks int            `json:"total_chunks"`
	LastIndexed string         `json:"last_indexed"`
	ByYear      map[string]int `json:"papers_by_year"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	query, err := s.ports.Query.Query(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	answer, err := query.Answer(c.Request.Context(), req.Question)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, AnswerResponse{
		Query:     answer.Query,
		Answer:    answer.Text,
		Markdown:  answer.Markdown(),
		Citations: toCitations(answer.Citations),
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	if req.TopK < 0 || req.TopK > MaxTopK {
		c.JSON(http.StatusBadRequest, gin.H{"error": "top_k must be between 1 and 20"})
		return
	}

	query, err := s.ports.Query.Query(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	citations, err := query.Retrieve(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   req.Query,
		"results": toCitations(citations),
	})
}

func (s *Server) handleFind(c *gin.Context) {
	var req FindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
		return
	}

	query, err := s.ports.Query.Query(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	groups, err := query.FindPaper(c.Request.Context(), req.Keyword)
	if err != nil {
		writeError(c, err)
		return
	}

	papers := make([]PaperGroupResponse, 0, len(groups))
	for _, g := range groups {
		excerpts := make([]ExcerptResponse, 0, len(g.Excerpts))
		for _, ex := range g.Excerpts {
			excerpts = append(excerpts, ExcerptResponse{
				Page:  ex.Page,
				Score: domain.RoundScore(ex.Score),
				Text:  domain.Truncate(ex.Text, ExcerptLength),
			})
		}
		papers = append(papers, PaperGroupResponse{
			Title:      g.Title,
			Authors:    g.Authors,
			Year:       g.Year,
			TotalPages: g.TotalPages,
			Excerpts:   excerpts,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"keyword": req.Keyword,
		"papers":  papers,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.ports.Library.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		TotalPapers: stats.TotalPapers,
		TotalPages:  stats.TotalPages,
		TotalChunks: stats.TotalChunks,
		LastIndexed: stats.LastIndexed,
		ByYear:      stats.ByYear,
	})
}

func (s *Server) handlePapers(c *gin.Context) {
	papers, err := s.ports.Library.Papers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	if year := c.Query("year"); year != "" {
		filtered := make([]domain.PaperSummary, 0, len(papers))
		for _, p := range papers {
			if p.Year == year {
				filtered = append(filtered, p)
			}
		}
		papers = filtered
	}
	if papers == nil {
		papers = []domain.PaperSummary{}
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  len(papers),
		"papers": papers,
	})
}

// handleIndex starts a background run and returns immediately.
func (s *Server) handleIndex(c *gin.Context) {
	var req IndexRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	if !s.indexing.CompareAndSwap(false, true) {
		writeError(c, domain.ErrIndexInProgress)
		return
	}

	indexer, err := s.ports.Index.Indexer(c.Request.Context())
	if err != nil {
		s.indexing.Store(false)
		writeError(c, err)
		return
	}

	go func() {
		defer s.indexing.Store(false)
		report, err := indexer.Index(s.baseCtx, driving.IndexOptions{Force: req.Force})
		if err != nil {
			logger.Error("index run failed: %v", err)
			return
		}
		logger.Info("index run finished: %d indexed, %d skipped, %d failed",
			report.Indexed, report.Skipped, len(report.Failed))
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "indexing started", "force": req.Force})
}

// Indexing reports whether a run started over HTTP is still active.
func (s *Server) Indexing() bool {
	return s.indexing.Load()
}

func toCitations(citations []domain.Citation) []CitationResponse {
	out := make([]CitationResponse, 0, len(citations))
	for _, c := range citations {
		m := c.Chunk.Meta
		out = append(out, CitationResponse{
			Title:   m.Title,
			Authors: m.Authors,
			Year:    m.Year,
			Page:    m.Page,
			Score:   domain.RoundScore(c.Score),
			Excerpt: c.Excerpt(ExcerptLength),
		})
	}
	return out
}

// writeError maps domain errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrIndexNotBuilt), errors.Is(err, domain.ErrIndexInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable),
		errors.Is(err, domain.ErrVectorStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
