// Package app wires configuration, adapters and core services into a
// long-lived session shared by the CLI, MCP server, chat UI and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SWHsz/LocalKnowledge/internal/adapters/driven/ai"
	"github.com/SWHsz/LocalKnowledge/internal/adapters/driven/cache/file"
	configfile "github.com/SWHsz/LocalKnowledge/internal/adapters/driven/config/file"
	"github.com/SWHsz/LocalKnowledge/internal/adapters/driven/pdf"
	"github.com/SWHsz/LocalKnowledge/internal/adapters/driven/storage/sqlite"
	"github.com/SWHsz/LocalKnowledge/internal/adapters/driven/zotero"
	zoteroconn "github.com/SWHsz/LocalKnowledge/internal/connectors/zotero"
	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
	"github.com/SWHsz/LocalKnowledge/internal/core/services"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
	"github.com/SWHsz/LocalKnowledge/internal/postprocessors/chunker"
)

// llmRetryInterval limits how often an unreachable generation backend is
// probed again.
var llmRetryInterval = 30 * time.Second

// Option customises a Session.
type Option func(*Session)

// WithMetrics records indexing and query metrics.
func WithMetrics(m driven.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithBackends supplies the embedding and generation backends instead of
// creating them from configuration. llm may be nil.
func WithBackends(embedding driven.EmbeddingService, llm driven.LLMService) Option {
	return func(s *Session) {
		s.backends = &ai.InitResult{EmbeddingService: embedding, LLMService: llm}
		s.injected = true
	}
}

// WithExtractor replaces the pdftotext page extractor.
func WithExtractor(e driven.PageExtractor) Option {
	return func(s *Session) { s.extractor = e }
}

// WithDatabaseLocator replaces discovery of the library database.
func WithDatabaseLocator(locate services.DatabaseLocator) Option {
	return func(s *Session) { s.locate = locate }
}

// Session holds the services of one process. Cheap local services are
// ready on creation; the backends, retrieval engine and indexer are built
// by the first successful EnsureLoaded. A failed load is retried by the
// next caller. A Session is safe for concurrent use.
type Session struct {
	cfg *domain.Config

	store     *sqlite.Store
	state     *file.StateStore
	library   *services.LibraryService
	metadata  *services.MetadataService
	metrics   driven.Metrics
	extractor driven.PageExtractor
	locate    services.DatabaseLocator

	mu         sync.Mutex
	loaded     bool
	injected   bool
	backends   *ai.InitResult
	prompts    driven.PromptStore
	engine     *services.RetrievalEngine
	indexer    *services.Indexer
	llmChecked time.Time
}

// NewSession opens the vector store and prepares the local services.
func NewSession(cfg *domain.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config: %w", domain.ErrConfig)
	}

	s := &Session{
		cfg:     cfg,
		state:   file.NewStateStore(cfg.Paths.CacheDir),
		metrics: driven.NopMetrics{},
		locate:  zotero.DefaultDatabase,
	}
	for _, opt := range opts {
		opt(s)
	}

	store, err := sqlite.NewStore(cfg.VectorStorePath())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	s.store = store

	s.library = services.NewLibraryService(s.state, store)
	s.metadata = services.NewMetadataService(
		cfg.Zotero,
		file.NewMetadataCache(cfg.Paths.CacheDir),
		zotero.Opener,
		s.locate,
	)
	return s, nil
}

// EnsureLoaded creates the backends, retrieval engine and indexer. Once a
// load succeeds later calls return nil at once; a failure is not cached.
// Cancelling ctx does not abort a load other callers may be waiting on;
// backend probes are bounded by their own timeout.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLoaded(ctx)
}

func (s *Session) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	if err := s.load(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

func (s *Session) load(ctx context.Context) error {
	if s.backends == nil {
		backends, err := ai.Init(ctx, s.cfg)
		if err != nil {
			return err
		}
		s.backends = backends
		s.llmChecked = time.Now()
		for _, w := range backends.Warnings {
			logger.Warn("%s", w)
		}
	}

	if s.prompts == nil {
		prompts, err := configfile.NewPromptStore(s.cfg.PromptsDir())
		if err != nil {
			return fmt.Errorf("prompt store: %w", err)
		}
		s.prompts = prompts
	}
	s.engine = s.newEngine()

	chunks, err := chunker.New(
		chunker.WithChunkSize(s.cfg.RAG.ChunkSize),
		chunker.WithOverlap(s.cfg.RAG.ChunkOverlap),
	)
	if err != nil {
		return fmt.Errorf("chunker: %w", err)
	}

	extractor := s.extractor
	if extractor == nil {
		extractor = pdf.New()
	}

	s.indexer = services.NewIndexer(
		zoteroconn.NewLocator(s.cfg.Zotero.StoragePath()),
		s.metadata,
		services.NewChangeDetector(s.state),
		extractor,
		chunks,
		s.backends.EmbeddingService,
		s.store,
	)
	s.indexer.SetMetrics(s.metrics)

	logger.Debug("session loaded: embedding %s, llm available %t",
		s.backends.EmbeddingService.ModelName(), s.backends.LLMService != nil)
	return nil
}

func (s *Session) newEngine() *services.RetrievalEngine {
	engine := services.NewRetrievalEngine(
		s.backends.EmbeddingService,
		s.store,
		s.backends.LLMService,
		s.prompts,
		services.RetrievalConfig{
			TopK:          s.cfg.RAG.TopK,
			Threshold:     s.cfg.RAG.SimilarityThreshold,
			ContextWindow: s.cfg.LLM.ContextWindow,
			MaxTokens:     s.cfg.LLM.MaxTokens,
			Temperature:   s.cfg.LLM.Temperature,
		},
	)
	engine.SetMetrics(s.metrics)
	return engine
}

// retryLLM probes a configured but unreachable generation backend again,
// at most once per llmRetryInterval, and swaps in a new engine when it
// answers. Callers hold s.mu.
func (s *Session) retryLLM(ctx context.Context) {
	if s.injected || s.backends.LLMService != nil || !s.cfg.LLM.IsConfigured() {
		return
	}
	if time.Since(s.llmChecked) < llmRetryInterval {
		return
	}
	s.llmChecked = time.Now()

	llm, err := ai.CreateAndValidateLLMService(context.WithoutCancel(ctx), &s.cfg.LLM)
	if err != nil || llm == nil {
		logger.Debug("llm still unavailable: %v", err)
		return
	}
	s.backends.LLMService = llm
	s.engine = s.newEngine()
	logger.Info("llm %s is now available", llm.ModelName())
}

// Config returns the session configuration.
func (s *Session) Config() *domain.Config {
	return s.cfg
}

// Query returns the retrieval engine, loading the session if needed. An
// unavailable generation backend is retried here.
func (s *Session) Query(ctx context.Context) (driving.QueryService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.retryLLM(ctx)
	return s.engine, nil
}

// Indexer returns the indexing pipeline, loading the session if needed.
func (s *Session) Indexer(ctx context.Context) (driving.IndexService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.indexer, nil
}

// CanAnswer reports whether answer synthesis is available. It is false
// before the session is loaded.
func (s *Session) CanAnswer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine != nil && s.engine.CanAnswer()
}

// Library returns the library statistics service.
func (s *Session) Library() driving.LibraryService {
	return s.library
}

// Metadata returns the bibliographic metadata service.
func (s *Session) Metadata() driving.MetadataService {
	return s.metadata
}

// DatabasePath resolves the library database the metadata service would open.
func (s *Session) DatabasePath(override string) (string, error) {
	return s.metadata.DatabasePath(override)
}

// Warnings returns non-fatal issues found while loading.
func (s *Session) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backends == nil {
		return nil
	}
	return s.backends.Warnings
}

// Close releases the backends and the vector store.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backends != nil {
		s.backends.Close()
	}
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
