package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

// --- Mock implementations shared by the service tests ---

// mockStateStore implements driven.IndexStateStore in memory.
type mockStateStore struct {
	mu      sync.Mutex
	state   *domain.IndexState
	saves   int
	loadErr error
	saveErr error
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{state: domain.NewIndexState()}
}

func (m *mockStateStore) Load(_ context.Context) (*domain.IndexState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	cp := &domain.IndexState{
		IndexedFiles: make(map[string]domain.IndexedFileRecord, len(m.state.IndexedFiles)),
		LastIndexed:  m.state.LastIndexed,
	}
	for k, v := range m.state.IndexedFiles {
		cp.IndexedFiles[k] = v
	}
	return cp, nil
}

func (m *mockStateStore) Save(_ context.Context, state *domain.IndexState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.state = state
	m.state.LastIndexed = "2024-01-02T03:04:05Z"
	return nil
}

// mockVectorStore implements driven.VectorStore with exact-match scores
// supplied by the test.
type mockVectorStore struct {
	mu         sync.Mutex
	chunks     map[string][]domain.Chunk
	replaced   [][]string
	results    []domain.Citation
	searchK    int
	replaceErr error
	searchErr  error
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{chunks: make(map[string][]domain.Chunk)}
}

func (m *mockVectorStore) Replace(_ context.Context, keys []string, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced = append(m.replaced, keys)
	for _, k := range keys {
		delete(m.chunks, k)
	}
	for _, c := range chunks {
		m.chunks[c.Meta.IdentityKey] = append(m.chunks[c.Meta.IdentityKey], c)
	}
	return nil
}

func (m *mockVectorStore) Search(_ context.Context, _ []float32, k int) ([]domain.Citation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchK = k
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if len(m.results) > k {
		return m.results[:k], nil
	}
	return m.results, nil
}

func (m *mockVectorStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.results)
	for _, cs := range m.chunks {
		n += len(cs)
	}
	return n, nil
}

func (m *mockVectorStore) Close() error { return nil }

// mockEmbedding implements driven.EmbeddingService with constant vectors.
type mockEmbedding struct {
	mu         sync.Mutex
	batchCalls int
	batchSizes []int
	embedErr   error
	short      bool
}

func (m *mockEmbedding) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return []float32{1, 0, 0}, nil
}

func (m *mockEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	n := len(texts)
	if m.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (m *mockEmbedding) Dimensions() int              { return 3 }
func (m *mockEmbedding) ModelName() string            { return "mock-embed" }
func (m *mockEmbedding) Ping(_ context.Context) error { return nil }
func (m *mockEmbedding) Close() error                 { return nil }

// mockLLM implements driven.LLMService and records prompts.
type mockLLM struct {
	mu       sync.Mutex
	calls    [][]driven.ChatMessage
	replies  []string
	chatErr  error
	lastOpts driven.ChatOptions
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chatErr != nil {
		return "", m.chatErr
	}
	m.calls = append(m.calls, messages)
	m.lastOpts = opts
	i := len(m.calls) - 1
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return fmt.Sprintf("answer %d", i+1), nil
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockPrompts implements driven.PromptStore with fixed templates.
type mockPrompts struct{}

func (mockPrompts) Load(name string) (string, error) {
	switch name {
	case driven.PromptQA:
		return "CONTEXT:\n%s\nQUESTION: %s", nil
	case driven.PromptRefine:
		return "QUESTION: %s\nEXISTING: %s\nMORE:\n%s", nil
	case driven.PromptChatSystem:
		return "SYSTEM", nil
	default:
		return "", fmt.Errorf("unknown prompt %s", name)
	}
}

func (mockPrompts) Reload() {}

// mockLocator implements driven.DocumentLocator.
type mockLocator struct {
	items []domain.LibraryItem
	err   error
}

func (m *mockLocator) Scan() ([]domain.LibraryItem, error) {
	return m.items, m.err
}

// mockExtractor implements driven.PageExtractor from in-memory pages keyed
// by file path. A nil entry is a blank page.
type mockExtractor struct {
	pages   map[string][]string
	failing map[string]error
	opened  []string
}

func (m *mockExtractor) Open(_ context.Context, path string) (driven.PageReader, error) {
	m.opened = append(m.opened, path)
	if err, ok := m.failing[path]; ok {
		return nil, err
	}
	pages, ok := m.pages[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, domain.ErrExtraction)
	}
	return &mockPageReader{pages: pages, cur: -1}, nil
}

type mockPageReader struct {
	pages []string
	cur   int
}

func (r *mockPageReader) Next() bool {
	for r.cur+1 < len(r.pages) {
		r.cur++
		if strings.TrimSpace(r.pages[r.cur]) != "" {
			return true
		}
	}
	return false
}

func (r *mockPageReader) Number() int   { return r.cur + 1 }
func (r *mockPageReader) Text() string  { return r.pages[r.cur] }
func (r *mockPageReader) NumPages() int { return len(r.pages) }
func (r *mockPageReader) Err() error    { return nil }
func (r *mockPageReader) Close() error  { return nil }

// pageChunker implements driven.PageChunker with one chunk per page.
type pageChunker struct{}

func (pageChunker) Process(_ context.Context, page domain.Page) ([]domain.Chunk, error) {
	text := strings.TrimSpace(page.Text)
	if text == "" {
		return nil, nil
	}
	return []domain.Chunk{{
		ID:   fmt.Sprintf("%s-%s-%d", page.Meta.IdentityKey, page.Meta.Source, page.Meta.Page),
		Text: text,
		Meta: page.Meta,
	}}, nil
}

// mockMetadata implements driving.MetadataService.
type mockMetadata struct {
	items map[string]domain.CanonicalMetadata
	err   error
}

func (m *mockMetadata) Extract(_ context.Context, _ driving.ExtractOptions) (map[string]domain.CanonicalMetadata, error) {
	if m.err != nil {
		return map[string]domain.CanonicalMetadata{}, m.err
	}
	return m.items, nil
}

func (m *mockMetadata) ResolveAttachment(_ context.Context, key string) (*domain.CanonicalMetadata, error) {
	for _, item := range m.items {
		for _, k := range item.AttachmentKeys() {
			if k == key {
				return &item, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// mockBibliography implements driven.BibliographyDatabase.
type mockBibliography struct {
	items  map[string]domain.CanonicalMetadata
	closed bool
}

func (m *mockBibliography) Items(_ context.Context) (map[string]domain.CanonicalMetadata, error) {
	return m.items, nil
}

func (m *mockBibliography) ItemByAttachmentKey(_ context.Context, key string) (*domain.CanonicalMetadata, error) {
	mapping := AttachmentMapping(m.items)
	if item, ok := mapping[key]; ok {
		return item, nil
	}
	return nil, fmt.Errorf("attachment %s: %w", key, domain.ErrNotFound)
}

func (m *mockBibliography) Close() error {
	m.closed = true
	return nil
}

// mockMetadataCache implements driven.MetadataCache in memory.
type mockMetadataCache struct {
	records map[string]domain.CanonicalMetadata
	saved   int
}

func (m *mockMetadataCache) Load(_ context.Context) (map[string]domain.CanonicalMetadata, bool, error) {
	if m.records == nil {
		return nil, false, nil
	}
	return m.records, true, nil
}

func (m *mockMetadataCache) Save(_ context.Context, records map[string]domain.CanonicalMetadata) error {
	m.saved++
	m.records = records
	return nil
}

// mockIndexService implements driving.IndexService.
type mockIndexService struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{}
}

func (m *mockIndexService) Index(_ context.Context, _ driving.IndexOptions) (*domain.IndexReport, error) {
	m.mu.Lock()
	m.calls++
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IndexReport{Indexed: 1}, nil
}

func (m *mockIndexService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Fixtures ---

// writeLibrary creates <root>/<key>/<name> files with the given content and
// returns the matching library items, sorted by key then filename.
func writeLibrary(t *testing.T, root string, files map[string]string) []domain.LibraryItem {
	t.Helper()
	var items []domain.LibraryItem
	for rel, content := range files {
		key, name, ok := strings.Cut(rel, "/")
		require.True(t, ok, "fixture path must be KEY/name")
		dir := filepath.Join(root, key)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		items = append(items, domain.LibraryItem{Key: key, Filename: name, Path: path})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Key != items[j].Key {
			return items[i].Key < items[j].Key
		}
		return items[i].Filename < items[j].Filename
	})
	return items
}

func citation(title string, page int, score float64, text string) domain.Citation {
	return domain.Citation{
		Chunk: domain.Chunk{
			ID:   fmt.Sprintf("%s-%d", title, page),
			Text: text,
			Meta: domain.ChunkMeta{Title: title, Authors: "A. Author", Year: "2020", Page: page, TotalPages: 10},
		},
		Score: score,
	}
}

var errBoom = errors.New("boom")
