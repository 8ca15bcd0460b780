package domain

import (
	"fmt"
	"path/filepath"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// Defaults applied when the configuration leaves a value unset.
const (
	DefaultOllamaURL           = "http://localhost:11434"
	DefaultChunkSize           = 512
	DefaultChunkOverlap        = 50
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.5
	DefaultBackendTimeout      = 120 * time.Second
	DefaultContextWindow       = 12000
	DefaultServerAddr          = "127.0.0.1:8765"
)

// ZoteroConfig locates the bibliographic library.
type ZoteroConfig struct {
	// DataDir is the library data directory holding storage/ and the database.
	DataDir string

	// StorageDir overrides <DataDir>/storage.
	StorageDir string

	// Database overrides <DataDir>/zotero.sqlite.
	Database string
}

// StoragePath returns the storage root.
func (z ZoteroConfig) StoragePath() string {
	if z.StorageDir != "" {
		return z.StorageDir
	}
	if z.DataDir == "" {
		return ""
	}
	return filepath.Join(z.DataDir, "storage")
}

// DatabasePath returns the configured database path, or "" when discovery
// is required.
func (z ZoteroConfig) DatabasePath() string {
	if z.Database != "" {
		return z.Database
	}
	if z.DataDir == "" {
		return ""
	}
	return filepath.Join(z.DataDir, "zotero.sqlite")
}

// PathsConfig holds the application's own storage locations.
type PathsConfig struct {
	// CacheDir holds index_state.json, zotero_metadata.json and prompts.
	CacheDir string

	// VectorDB is the directory of the vector store.
	VectorDB string
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Timeout bounds each backend request.
	Timeout time.Duration

	// Concurrency bounds parallel requests within one batch.
	Concurrency int

	// RequestsPerSecond rate-limits cloud providers; 0 disables limiting.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Model == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Timeout bounds each backend request.
	Timeout time.Duration

	MaxTokens   int
	Temperature float64

	// ContextWindow is the number of characters of retrieved context packed
	// into one synthesis prompt.
	ContextWindow int

	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Model == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RAGConfig holds chunking and retrieval parameters.
type RAGConfig struct {
	ChunkSize           int
	ChunkOverlap        int
	TopK                int
	SimilarityThreshold float64
}

// ServerConfig configures the HTTP chat API.
type ServerConfig struct {
	Addr string

	// ReindexSchedule is a cron expression; empty disables scheduled indexing.
	ReindexSchedule string
}

// Config is the single configuration document.
type Config struct {
	Zotero    ZoteroConfig
	Paths     PathsConfig
	Embedding EmbeddingSettings
	LLM       LLMSettings
	RAG       RAGConfig
	Server    ServerConfig
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = AIProviderOllama
	}
	if c.Embedding.Provider == AIProviderOllama && c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = DefaultOllamaURL
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = DefaultEmbeddingModels()[c.Embedding.Provider]
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = DefaultBackendTimeout
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = 4
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = AIProviderOllama
	}
	if c.LLM.Provider == AIProviderOllama && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultOllamaURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultLLMModels()[c.LLM.Provider]
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = DefaultBackendTimeout
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.ContextWindow <= 0 {
		c.LLM.ContextWindow = DefaultContextWindow
	}

	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = DefaultChunkSize
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = DefaultTopK
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}

// Validate checks the configuration is usable. Every failure wraps ErrConfig.
func (c *Config) Validate() error {
	if c.Paths.CacheDir == "" {
		return fmt.Errorf("paths.cache_dir is required: %w", ErrConfig)
	}
	if c.Paths.VectorDB == "" {
		return fmt.Errorf("paths.vector_db is required: %w", ErrConfig)
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d: %w", c.RAG.ChunkSize, ErrConfig)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap (%d) must be in [0, rag.chunk_size=%d): %w",
			c.RAG.ChunkOverlap, c.RAG.ChunkSize, ErrConfig)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d: %w", c.RAG.TopK, ErrConfig)
	}
	if c.RAG.SimilarityThreshold < -1 || c.RAG.SimilarityThreshold > 1 {
		return fmt.Errorf("rag.similarity_threshold must be in [-1, 1], got %g: %w",
			c.RAG.SimilarityThreshold, ErrConfig)
	}
	if !c.Embedding.Provider.IsValid() || c.Embedding.Provider == AIProviderAnthropic {
		return fmt.Errorf("embedding.provider %q does not support embeddings: %w",
			c.Embedding.Provider, ErrConfig)
	}
	if !c.LLM.Provider.IsValid() {
		return fmt.Errorf("llm.provider %q is not recognised: %w", c.LLM.Provider, ErrConfig)
	}
	return nil
}

// StatePath returns the change-detection cache file.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.CacheDir, "index_state.json")
}

// MetadataCachePath returns the bibliographic metadata cache file.
func (c *Config) MetadataCachePath() string {
	return filepath.Join(c.Paths.CacheDir, "zotero_metadata.json")
}

// PromptsDir returns the directory of user-editable prompt templates.
func (c *Config) PromptsDir() string {
	return filepath.Join(c.Paths.CacheDir, "prompts")
}

// VectorStorePath returns the vector store database file.
func (c *Config) VectorStorePath() string {
	return filepath.Join(c.Paths.VectorDB, "chunks.db")
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		"bge-m3":            1024,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
