package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

// keywordEmbedding maps text onto fixed axes so similarity is predictable.
type keywordEmbedding struct{}

func (keywordEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	v := []float32{0, 0, 0.01}
	if strings.Contains(text, "attention") {
		v[0] = 1
	}
	if strings.Contains(text, "bert") {
		v[1] = 1
	}
	return v, nil
}

func (e keywordEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (keywordEmbedding) Dimensions() int              { return 3 }
func (keywordEmbedding) ModelName() string            { return "keyword" }
func (keywordEmbedding) Ping(_ context.Context) error { return nil }
func (keywordEmbedding) Close() error                 { return nil }

// textExtractor reads each file's content as a single page.
type textExtractor struct{}

func (textExtractor) Open(_ context.Context, path string) (driven.PageReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &singlePage{text: string(data)}, nil
}

type singlePage struct {
	text string
	done bool
}

func (p *singlePage) Next() bool {
	if p.done {
		return false
	}
	p.done = true
	return true
}

func (p *singlePage) Number() int   { return 1 }
func (p *singlePage) Text() string  { return p.text }
func (p *singlePage) NumPages() int { return 1 }
func (p *singlePage) Err() error    { return nil }
func (p *singlePage) Close() error  { return nil }

func testConfig(t *testing.T) *domain.Config {
	t.Helper()
	root := t.TempDir()
	storage := filepath.Join(root, "storage")
	for key, file := range map[string]string{
		"AAAA1111/Vaswani - 2017 - Attention Is All You Need.pdf": "Self attention relates all positions.",
		"BBBB2222/Devlin - 2019 - BERT.pdf":                       "BERT pre-trains deep bidirectional encoders.",
	} {
		path := filepath.Join(storage, key)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(file), 0o600))
	}

	cfg := &domain.Config{
		Zotero: domain.ZoteroConfig{StorageDir: storage},
		Paths: domain.PathsConfig{
			CacheDir: filepath.Join(root, "cache"),
			VectorDB: filepath.Join(root, "vectors"),
		},
		RAG: domain.RAGConfig{SimilarityThreshold: 0.9},
	}
	cfg.ApplyDefaults()
	return cfg
}

func newTestSession(t *testing.T, cfg *domain.Config) *Session {
	t.Helper()
	s, err := NewSession(cfg,
		WithBackends(keywordEmbedding{}, nil),
		WithExtractor(textExtractor{}),
		WithDatabaseLocator(func() (string, bool) { return "", false }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSession_NilConfig(t *testing.T) {
	_, err := NewSession(nil)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestSession_LocalServicesWithoutLoading(t *testing.T) {
	s := newTestSession(t, testConfig(t))

	stats, err := s.Library().Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalPapers)
	assert.False(t, s.CanAnswer())
	assert.Nil(t, s.Warnings())
}

func TestSession_IndexThenQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, testConfig(t))

	require.NoError(t, s.EnsureLoaded(ctx))
	require.NoError(t, s.EnsureLoaded(ctx), "loading twice is a no-op")

	indexer, err := s.Indexer(ctx)
	require.NoError(t, err)
	report, err := indexer.Index(ctx, driving.IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Empty(t, report.Failed)

	query, err := s.Query(ctx)
	require.NoError(t, err)
	citations, err := query.Retrieve(ctx, "what is attention", 5)
	require.NoError(t, err)
	require.Len(t, citations, 1)
	assert.Equal(t, "Attention Is All You Need", citations[0].Chunk.Meta.Title)
	assert.Equal(t, "Vaswani", citations[0].Chunk.Meta.Authors)
	assert.Equal(t, 1, citations[0].Chunk.Meta.Page)

	stats, err := s.Library().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalPapers)
	assert.Positive(t, stats.TotalChunks)
	assert.NotEmpty(t, stats.LastIndexed)

	_, err = os.Stat(s.Config().StatePath())
	assert.NoError(t, err, "state file written to the cache directory")

	again, err := indexer.Index(ctx, driving.IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Indexed)
	assert.Equal(t, 2, again.Skipped)
}

func TestSession_AnswerWithoutLLM(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, testConfig(t))

	query, err := s.Query(ctx)
	require.NoError(t, err)
	_, err = query.Answer(ctx, "anything")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestSession_RetrieveBeforeIndexing(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, testConfig(t))

	query, err := s.Query(ctx)
	require.NoError(t, err)
	_, err = query.Retrieve(ctx, "attention", 5)
	assert.ErrorIs(t, err, domain.ErrIndexNotBuilt)
}

func TestSession_DatabasePathMissing(t *testing.T) {
	s := newTestSession(t, testConfig(t))

	_, err := s.DatabasePath("")
	assert.ErrorIs(t, err, domain.ErrLibraryNotFound)
}

// ollamaBackend answers the Ollama reachability check while healthy is set.
func ollamaBackend(t *testing.T, healthy *atomic.Bool) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		if !healthy.Load() {
			http.Error(w, "starting up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// newConfiguredSession builds its backends from configuration.
func newConfiguredSession(t *testing.T, embedURL, llmURL string) *Session {
	t.Helper()
	cfg := testConfig(t)
	cfg.Embedding.BaseURL = embedURL
	cfg.LLM.BaseURL = llmURL

	s, err := NewSession(cfg,
		WithExtractor(textExtractor{}),
		WithDatabaseLocator(func() (string, bool) { return "", false }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_LoadRetriedAfterBackendOutage(t *testing.T) {
	ctx := context.Background()
	var healthy atomic.Bool
	url := ollamaBackend(t, &healthy)
	s := newConfiguredSession(t, url, url)

	err := s.EnsureLoaded(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	_, err = s.Query(ctx)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	healthy.Store(true)
	require.NoError(t, s.EnsureLoaded(ctx))

	query, err := s.Query(ctx)
	require.NoError(t, err)
	assert.NotNil(t, query)
	assert.True(t, s.CanAnswer())
}

func TestSession_CancelledFirstCallerDoesNotPoisonLoad(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	url := ollamaBackend(t, &healthy)
	s := newConfiguredSession(t, url, url)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_ = s.EnsureLoaded(cancelled)

	require.NoError(t, s.EnsureLoaded(context.Background()))
	indexer, err := s.Indexer(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, indexer)
}

func TestSession_LLMRecoversAfterLoad(t *testing.T) {
	ctx := context.Background()
	var embedUp, llmUp atomic.Bool
	embedUp.Store(true)
	s := newConfiguredSession(t, ollamaBackend(t, &embedUp), ollamaBackend(t, &llmUp))

	require.NoError(t, s.EnsureLoaded(ctx))
	assert.False(t, s.CanAnswer())
	require.Len(t, s.Warnings(), 1)

	prev := llmRetryInterval
	llmRetryInterval = time.Hour
	t.Cleanup(func() { llmRetryInterval = prev })

	llmUp.Store(true)
	_, err := s.Query(ctx)
	require.NoError(t, err)
	assert.False(t, s.CanAnswer(), "no recheck inside the retry interval")

	llmRetryInterval = 0
	_, err = s.Query(ctx)
	require.NoError(t, err)
	assert.True(t, s.CanAnswer())
}

func TestSession_ConcurrentQueries(t *testing.T) {
	s := newTestSession(t, testConfig(t))

	done := make(chan error, 8)
	for range 8 {
		go func() {
			_, err := s.Query(context.Background())
			_ = s.CanAnswer()
			done <- err
		}()
	}
	for range 8 {
		assert.NoError(t, <-done)
	}
}
