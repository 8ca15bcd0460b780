package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// Ensure RetrievalEngine implements the interface.
var _ driving.QueryService = (*RetrievalEngine)(nil)

// FindPaperTopK is the number of chunks retrieved when grouping by title.
const FindPaperTopK = 10

// RetrievalConfig holds the retrieval and synthesis parameters.
type RetrievalConfig struct {
	TopK      int
	Threshold float64

	// ContextWindow is the number of characters of context per prompt.
	ContextWindow int

	MaxTokens   int
	Temperature float64
}

// RetrievalEngine answers questions from the vector store with citations.
type RetrievalEngine struct {
	embedding driven.EmbeddingService
	store     driven.VectorStore
	llm       driven.LLMService
	prompts   driven.PromptStore
	metrics   driven.Metrics
	cfg       RetrievalConfig
}

// NewRetrievalEngine creates a retrieval engine.
// The llm parameter is optional (can be nil); without it Answer fails with
// domain.ErrLLMUnavailable while retrieval keeps working.
func NewRetrievalEngine(
	embedding driven.EmbeddingService,
	store driven.VectorStore,
	llm driven.LLMService,
	prompts driven.PromptStore,
	cfg RetrievalConfig,
) *RetrievalEngine {
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = domain.DefaultContextWindow
	}
	return &RetrievalEngine{
		embedding: embedding,
		store:     store,
		llm:       llm,
		prompts:   prompts,
		metrics:   driven.NopMetrics{},
		cfg:       cfg,
	}
}

// SetMetrics sets the metrics recorder.
func (e *RetrievalEngine) SetMetrics(m driven.Metrics) {
	if m != nil {
		e.metrics = m
	}
}

// CanAnswer reports whether answer synthesis is available.
func (e *RetrievalEngine) CanAnswer() bool {
	return e.llm != nil
}

// Retrieve embeds the query and returns the closest chunks scoring at or
// above the similarity threshold, best first.
func (e *RetrievalEngine) Retrieve(ctx context.Context, query string, topK int) ([]domain.Citation, error) {
	start := time.Now()
	citations, err := e.retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	e.metrics.Query("retrieve", len(citations), time.Since(start))
	return citations, nil
}

func (e *RetrievalEngine) retrieve(ctx context.Context, query string, topK int) ([]domain.Citation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Citation{}, nil
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	count, err := e.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if count == 0 {
		return nil, domain.ErrIndexNotBuilt
	}

	vec, err := e.embedding.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := e.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	citations := make([]domain.Citation, 0, len(hits))
	for _, hit := range hits {
		if hit.Score >= e.cfg.Threshold {
			citations = append(citations, hit)
		}
	}
	logger.Debug("retrieved %d of %d hits above %.2f for %q", len(citations), len(hits), e.cfg.Threshold, query)
	return citations, nil
}

// Answer retrieves context for the query and synthesises a grounded answer.
// Context is packed into as few prompts as fit the context window: the
// first pack is answered, later packs refine the running answer.
func (e *RetrievalEngine) Answer(ctx context.Context, query string) (*domain.Answer, error) {
	if e.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	start := time.Now()
	citations, err := e.retrieve(ctx, query, e.cfg.TopK)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{Query: query, Citations: citations}
	if len(citations) == 0 {
		answer.Text = domain.EmptyResponse
		return answer, nil
	}

	system, err := e.prompts.Load(driven.PromptChatSystem)
	if err != nil {
		return nil, fmt.Errorf("load prompt: %w", err)
	}

	packs := PackContext(citations, e.cfg.ContextWindow)
	logger.Debug("synthesising from %d chunks in %d prompts", len(citations), len(packs))

	for i, pack := range packs {
		var prompt string
		if i == 0 {
			prompt, err = e.render(driven.PromptQA, pack, query)
		} else {
			prompt, err = e.render(driven.PromptRefine, query, answer.Text, pack)
		}
		if err != nil {
			return nil, err
		}

		text, err := e.llm.Chat(ctx, []driven.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		}, driven.ChatOptions{MaxTokens: e.cfg.MaxTokens, Temperature: e.cfg.Temperature})
		if err != nil {
			return nil, fmt.Errorf("synthesise answer: %w", err)
		}
		answer.Text = strings.TrimSpace(text)
	}

	e.metrics.Query("answer", len(citations), time.Since(start))
	return answer, nil
}

func (e *RetrievalEngine) render(name string, args ...any) (string, error) {
	tmpl, err := e.prompts.Load(name)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", name, err)
	}
	return fmt.Sprintf(tmpl, args...), nil
}

// FindPaper retrieves the top chunks for keyword and groups those whose
// paper title contains it, case-insensitively, in first-seen order.
func (e *RetrievalEngine) FindPaper(ctx context.Context, keyword string) ([]domain.PaperGroup, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("empty title keyword: %w", domain.ErrInvalidInput)
	}

	start := time.Now()
	citations, err := e.retrieve(ctx, keyword, FindPaperTopK)
	if err != nil {
		return nil, err
	}

	groups := GroupByTitle(citations, keyword)
	e.metrics.Query("find", len(groups), time.Since(start))
	return groups, nil
}

// GroupByTitle keeps citations whose title contains keyword
// (case-insensitive) and groups them by title in first-seen order.
func GroupByTitle(citations []domain.Citation, keyword string) []domain.PaperGroup {
	needle := strings.ToLower(keyword)
	index := make(map[string]int)
	groups := []domain.PaperGroup{}

	for _, c := range citations {
		m := c.Chunk.Meta
		if !strings.Contains(strings.ToLower(m.Title), needle) {
			continue
		}
		i, ok := index[m.Title]
		if !ok {
			i = len(groups)
			index[m.Title] = i
			groups = append(groups, domain.PaperGroup{
				Title:      m.Title,
				Authors:    m.Authors,
				Year:       m.Year,
				TotalPages: m.TotalPages,
			})
		}
		groups[i].Excerpts = append(groups[i].Excerpts, domain.Excerpt{
			Page:  m.Page,
			Text:  c.Chunk.Text,
			Score: c.Score,
		})
	}
	return groups
}

// PackContext formats citations in retrieval order and packs them into as
// few blocks as fit window characters. A citation larger than the window
// gets a block of its own.
func PackContext(citations []domain.Citation, window int) []string {
	var packs []string
	var b strings.Builder
	for i, c := range citations {
		block := formatContext(i+1, c)
		if b.Len() > 0 && b.Len()+len(block) > window {
			packs = append(packs, b.String())
			b.Reset()
		}
		b.WriteString(block)
	}
	if b.Len() > 0 {
		packs = append(packs, b.String())
	}
	return packs
}

func formatContext(n int, c domain.Citation) string {
	m := c.Chunk.Meta
	return fmt.Sprintf("[%d] %s (%s, %s), page %d:\n%s\n\n", n, m.Title, m.Authors, m.Year, m.Page, c.Chunk.Text)
}
