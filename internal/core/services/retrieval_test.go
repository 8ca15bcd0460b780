package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

func newTestEngine(store *mockVectorStore, llm *mockLLM, cfg RetrievalConfig) *RetrievalEngine {
	var engine *RetrievalEngine
	if llm == nil {
		engine = NewRetrievalEngine(&mockEmbedding{}, store, nil, mockPrompts{}, cfg)
	} else {
		engine = NewRetrievalEngine(&mockEmbedding{}, store, llm, mockPrompts{}, cfg)
	}
	return engine
}

func storeWith(citations ...domain.Citation) *mockVectorStore {
	s := newMockVectorStore()
	s.results = citations
	return s
}

func TestNewRetrievalEngine_Defaults(t *testing.T) {
	e := NewRetrievalEngine(&mockEmbedding{}, newMockVectorStore(), nil, mockPrompts{}, RetrievalConfig{})
	assert.Equal(t, domain.DefaultTopK, e.cfg.TopK)
	assert.Equal(t, domain.DefaultContextWindow, e.cfg.ContextWindow)
	assert.False(t, e.CanAnswer())
}

func TestRetrieve_ThresholdAndOrder(t *testing.T) {
	store := storeWith(
		citation("Attention", 1, 0.91, "one"),
		citation("Attention", 2, 0.74, "two"),
		citation("BERT", 5, 0.70, "three"),
		citation("GPT", 3, 0.42, "four"),
	)
	e := newTestEngine(store, nil, RetrievalConfig{TopK: 10, Threshold: 0.7})

	got, err := e.Retrieve(context.Background(), "transformers", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 0.91, got[0].Score)
	assert.Equal(t, 0.74, got[1].Score)
	assert.Equal(t, 0.70, got[2].Score, "scores equal to the threshold are kept")
	assert.Equal(t, 10, store.searchK)
}

func TestRetrieve_TopK(t *testing.T) {
	store := storeWith(
		citation("A", 1, 0.9, "a"),
		citation("B", 1, 0.8, "b"),
		citation("C", 1, 0.7, "c"),
	)
	e := newTestEngine(store, nil, RetrievalConfig{TopK: 3})

	got, err := e.Retrieve(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, store.searchK)

	_, err = e.Retrieve(context.Background(), "q", -1)
	require.NoError(t, err)
	assert.Equal(t, 3, store.searchK, "non-positive topK uses the configured default")
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	e := newTestEngine(newMockVectorStore(), nil, RetrievalConfig{})

	got, err := e.Retrieve(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetrieve_IndexNotBuilt(t *testing.T) {
	e := newTestEngine(newMockVectorStore(), nil, RetrievalConfig{})

	_, err := e.Retrieve(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, domain.ErrIndexNotBuilt)
}

func TestRetrieve_NothingAboveThreshold(t *testing.T) {
	e := newTestEngine(storeWith(citation("A", 1, 0.1, "a")), nil, RetrievalConfig{Threshold: 0.5})

	got, err := e.Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_SearchError(t *testing.T) {
	store := storeWith(citation("A", 1, 0.9, "a"))
	store.searchErr = errBoom
	e := newTestEngine(store, nil, RetrievalConfig{})

	_, err := e.Retrieve(context.Background(), "q", 5)
	assert.ErrorIs(t, err, errBoom)
}

func TestAnswer_SinglePrompt(t *testing.T) {
	store := storeWith(
		citation("Attention", 3, 0.9, "self-attention relates positions"),
		citation("BERT", 1, 0.8, "bidirectional encoders"),
	)
	llm := &mockLLM{replies: []string{"  It relates positions [1].  "}}
	e := newTestEngine(store, llm, RetrievalConfig{MaxTokens: 256, Temperature: 0.2})
	require.True(t, e.CanAnswer())

	answer, err := e.Answer(context.Background(), "what is attention?")
	require.NoError(t, err)

	assert.Equal(t, "It relates positions [1].", answer.Text)
	assert.Equal(t, "what is attention?", answer.Query)
	assert.Len(t, answer.Citations, 2)

	require.Len(t, llm.calls, 1)
	msgs := llm.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "SYSTEM", msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "[1] Attention (A. Author, 2020), page 3:\nself-attention relates positions")
	assert.Contains(t, msgs[1].Content, "[2] BERT (A. Author, 2020), page 1:")
	assert.True(t, strings.HasSuffix(msgs[1].Content, "QUESTION: what is attention?"))
	assert.Equal(t, 256, llm.lastOpts.MaxTokens)
	assert.Equal(t, 0.2, llm.lastOpts.Temperature)
}

func TestAnswer_RefinesAcrossPacks(t *testing.T) {
	store := storeWith(
		citation("A", 1, 0.9, strings.Repeat("a", 40)),
		citation("B", 2, 0.8, strings.Repeat("b", 40)),
		citation("C", 3, 0.7, strings.Repeat("c", 40)),
	)
	llm := &mockLLM{}
	e := newTestEngine(store, llm, RetrievalConfig{ContextWindow: 60})

	answer, err := e.Answer(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, llm.calls, 3)
	assert.Equal(t, "answer 3", answer.Text)

	refine := llm.calls[1][1].Content
	assert.True(t, strings.HasPrefix(refine, "QUESTION: q\nEXISTING: answer 1\nMORE:\n[2] B"))
	assert.Contains(t, llm.calls[2][1].Content, "EXISTING: answer 2")
}

func TestAnswer_NoCitations(t *testing.T) {
	llm := &mockLLM{}
	e := newTestEngine(storeWith(citation("A", 1, 0.1, "a")), llm, RetrievalConfig{Threshold: 0.5})

	answer, err := e.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyResponse, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Empty(t, llm.calls)
}

func TestAnswer_NoLLM(t *testing.T) {
	e := newTestEngine(storeWith(citation("A", 1, 0.9, "a")), nil, RetrievalConfig{})

	_, err := e.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestAnswer_LLMError(t *testing.T) {
	llm := &mockLLM{chatErr: domain.ErrLLMUnavailable}
	e := newTestEngine(storeWith(citation("A", 1, 0.9, "a")), llm, RetrievalConfig{})

	_, err := e.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestFindPaper(t *testing.T) {
	store := storeWith(
		citation("Attention Is All You Need", 3, 0.9, "x"),
		citation("BERT", 1, 0.85, "y"),
		citation("Attention Is All You Need", 7, 0.8, "z"),
		citation("Graph Attention Networks", 2, 0.75, "w"),
	)
	e := newTestEngine(store, nil, RetrievalConfig{})

	groups, err := e.FindPaper(context.Background(), "ATTENTION")
	require.NoError(t, err)
	assert.Equal(t, FindPaperTopK, store.searchK)

	require.Len(t, groups, 2)
	assert.Equal(t, "Attention Is All You Need", groups[0].Title)
	require.Len(t, groups[0].Excerpts, 2)
	assert.Equal(t, 3, groups[0].Excerpts[0].Page)
	assert.Equal(t, 7, groups[0].Excerpts[1].Page)
	assert.Equal(t, "Graph Attention Networks", groups[1].Title)
}

func TestFindPaper_EmptyKeyword(t *testing.T) {
	e := newTestEngine(storeWith(citation("A", 1, 0.9, "a")), nil, RetrievalConfig{})

	_, err := e.FindPaper(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFindPaper_NoMatch(t *testing.T) {
	e := newTestEngine(storeWith(citation("BERT", 1, 0.9, "a")), nil, RetrievalConfig{})

	groups, err := e.FindPaper(context.Background(), "diffusion")
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestPackContext(t *testing.T) {
	cs := []domain.Citation{
		citation("A", 1, 0.9, "alpha"),
		citation("B", 2, 0.8, "beta"),
	}

	t.Run("fits in one block", func(t *testing.T) {
		packs := PackContext(cs, 10000)
		require.Len(t, packs, 1)
		assert.Equal(t,
			"[1] A (A. Author, 2020), page 1:\nalpha\n\n[2] B (A. Author, 2020), page 2:\nbeta\n\n",
			packs[0])
	})

	t.Run("oversized citations get their own block", func(t *testing.T) {
		packs := PackContext(cs, 5)
		require.Len(t, packs, 2)
		assert.True(t, strings.HasPrefix(packs[1], "[2] B"))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, PackContext(nil, 100))
	})
}
