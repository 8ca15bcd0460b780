package ollama

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// newServer returns an Ollama stand-in that embeds a text as [len(text), 1].
func newServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embeddings":
			if calls != nil {
				atomic.AddInt32(calls, 1)
			}
			var req embedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.Prompt == "fail" {
				http.Error(w, "model not found", http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{float64(len(req.Prompt)), 1}})
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})

	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, 768, s.Dimensions())
	assert.Equal(t, DefaultConcurrency, s.concurrency)
	assert.Equal(t, DefaultBaseURL, s.baseURL)
}

func TestNewEmbeddingService_KnownModelDimensions(t *testing.T) {
	s := NewEmbeddingService(Config{Model: "mxbai-embed-large", BaseURL: "http://host:11434/"})

	assert.Equal(t, 1024, s.Dimensions())
	assert.Equal(t, "http://host:11434", s.baseURL)
}

func TestEmbed(t *testing.T) {
	srv := newServer(t, nil)
	s := NewEmbeddingService(Config{BaseURL: srv.URL})

	vec, err := s.Embed(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, vec)
}

func TestEmbed_ServerError(t *testing.T) {
	srv := newServer(t, nil)
	s := NewEmbeddingService(Config{BaseURL: srv.URL})

	_, err := s.Embed(t.Context(), "fail")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "model not found")
}

func TestEmbed_Unreachable(t *testing.T) {
	s := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1"})

	_, err := s.Embed(t.Context(), "hello")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	s := NewEmbeddingService(Config{BaseURL: srv.URL, Concurrency: 3})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff", "g"}
	vecs, err := s.EmbedBatch(t.Context(), texts)
	require.NoError(t, err)

	require.Len(t, vecs, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vecs[i][0])
	}
	assert.Equal(t, int32(len(texts)), atomic.LoadInt32(&calls))
}

func TestEmbedBatch_Failure(t *testing.T) {
	srv := newServer(t, nil)
	s := NewEmbeddingService(Config{BaseURL: srv.URL})

	_, err := s.EmbedBatch(t.Context(), []string{"ok", "fail", "ok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed text 1")
}

func TestEmbedBatch_Empty(t *testing.T) {
	s := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1"})

	vecs, err := s.EmbedBatch(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestPing(t *testing.T) {
	srv := newServer(t, nil)
	assert.NoError(t, NewEmbeddingService(Config{BaseURL: srv.URL}).Ping(t.Context()))
	assert.Error(t, NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1"}).Ping(t.Context()))
}
