package web

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

func TestNewServer_InvalidPorts(t *testing.T) {
	_, err := NewServer(&Ports{Library: &mockLibraryService{}})
	assert.ErrorIs(t, err, ErrMissingQueryService)

	_, err = NewServer(&Ports{Query: &mockLoader{}})
	assert.ErrorIs(t, err, ErrMissingLibraryService)
}

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(t, &mockQueryService{}, sampleLibrary())

	rec := do(s, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := newTestServer(t, &mockQueryService{}, sampleLibrary(), WithGatherer(reg))
	rec := do(s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_total 1")
}

func TestServer_MetricsDisabledWithoutGatherer(t *testing.T) {
	s := newTestServer(t, &mockQueryService{}, sampleLibrary())

	rec := do(s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_IndexRouteRequiresPort(t *testing.T) {
	s := newTestServer(t, &mockQueryService{}, sampleLibrary())

	rec := do(s, http.MethodPost, "/api/index", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Index(t *testing.T) {
	indexer := &blockingIndexer{release: make(chan struct{}), force: make(chan bool, 1)}
	s, err := NewServer(&Ports{
		Query:   &mockLoader{svc: &mockQueryService{}},
		Library: sampleLibrary(),
		Index:   &mockIndexLoader{svc: indexer},
	}, WithBaseContext(context.Background()))
	require.NoError(t, err)

	rec := do(s, http.MethodPost, "/api/index", `{"force":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, <-indexer.force)
	assert.True(t, s.Indexing())

	t.Run("rejects concurrent run", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/api/index", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	close(indexer.release)
	assert.Eventually(t, func() bool { return !s.Indexing() }, time.Second, 10*time.Millisecond)
}

func TestServer_IndexLoaderFailure(t *testing.T) {
	s, err := NewServer(&Ports{
		Query:   &mockLoader{svc: &mockQueryService{}},
		Library: sampleLibrary(),
		Index:   &mockIndexLoader{err: domain.ErrEmbeddingUnavailable},
	})
	require.NoError(t, err)

	rec := do(s, http.MethodPost, "/api/index", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, s.Indexing())
}

func TestServer_Run(t *testing.T) {
	s := newTestServer(t, &mockQueryService{}, sampleLibrary())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func decode(t *testing.T, body []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, v))
}
