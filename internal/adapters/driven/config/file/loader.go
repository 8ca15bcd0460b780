package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// EnvPrefix prefixes environment overrides, e.g. LOCALKNOWLEDGE_TOP_K.
const EnvPrefix = "LOCALKNOWLEDGE"

// ConfigFileName is the default configuration file name.
const ConfigFileName = "config.yaml"

// envOverrides are environment variables that replace file values.
// Unset variables leave the pointer nil.
type envOverrides struct {
	ZoteroDataDir    *string `envconfig:"ZOTERO_DATA_DIR"`
	ZoteroStorageDir *string `envconfig:"ZOTERO_STORAGE_DIR"`
	ZoteroDatabase   *string `envconfig:"ZOTERO_DATABASE"`

	CacheDir *string `envconfig:"CACHE_DIR"`
	VectorDB *string `envconfig:"VECTOR_DB"`

	EmbeddingProvider *string `envconfig:"EMBEDDING_PROVIDER"`
	EmbeddingModel    *string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingBaseURL  *string `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingAPIKey   *string `envconfig:"EMBEDDING_API_KEY"`

	LLMProvider *string `envconfig:"LLM_PROVIDER"`
	LLMModel    *string `envconfig:"LLM_MODEL"`
	LLMBaseURL  *string `envconfig:"LLM_BASE_URL"`
	LLMAPIKey   *string `envconfig:"LLM_API_KEY"`

	TopK                *int     `envconfig:"TOP_K"`
	SimilarityThreshold *float64 `envconfig:"SIMILARITY_THRESHOLD"`

	ServerAddr      *string `envconfig:"SERVER_ADDR"`
	ReindexSchedule *string `envconfig:"REINDEX_SCHEDULE"`
}

// providerKeys are the providers' conventional API key variables, used when
// no key is configured.
type providerKeys struct {
	OpenAI    string `envconfig:"OPENAI_API_KEY"`
	Anthropic string `envconfig:"ANTHROPIC_API_KEY"`
}

// Load reads the configuration document at path, applies .env files and
// environment overrides, fills defaults and validates the result.
// Every failure wraps domain.ErrConfig.
func Load(path string) (*domain.Config, error) {
	loadDotEnv(filepath.Dir(path))

	store, err := NewConfigStore(path)
	if err != nil {
		return nil, err
	}

	cfg := fromStore(store)

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("reading %s_* environment: %v: %w", EnvPrefix, err, domain.ErrConfig)
	}
	applyEnv(cfg, &env)
	applyOllamaShorthand(cfg, store)

	var keys providerKeys
	if err := envconfig.Process("", &keys); err != nil {
		return nil, fmt.Errorf("reading provider keys: %v: %w", err, domain.ErrConfig)
	}
	applyProviderKeys(&cfg.Embedding.APIKey, cfg.Embedding.Provider, keys)
	applyProviderKeys(&cfg.LLM.APIKey, cfg.LLM.Provider, keys)

	expandPaths(cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("loaded config from %s", path)
	return cfg, nil
}

// loadDotEnv loads .env from the config directory and the working directory.
// Existing environment variables are never overwritten.
func loadDotEnv(configDir string) {
	for _, p := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			logger.Warn("ignoring %s: %v", p, err)
		}
	}
}

// fromStore maps the document's keys onto the configuration.
func fromStore(s *ConfigStore) *domain.Config {
	cfg := &domain.Config{
		Zotero: domain.ZoteroConfig{
			DataDir:    s.GetString("zotero.data_dir"),
			StorageDir: s.GetString("zotero.storage_dir"),
			Database:   s.GetString("zotero.database"),
		},
		Paths: domain.PathsConfig{
			CacheDir: s.GetString("paths.cache_dir"),
			VectorDB: s.GetString("paths.vector_db"),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          domain.AIProvider(strings.ToLower(s.GetString("embedding.provider"))),
			Model:             s.GetString("embedding.model"),
			BaseURL:           s.GetString("embedding.base_url"),
			APIKey:            s.GetString("embedding.api_key"),
			Timeout:           s.GetDuration("embedding.timeout"),
			Concurrency:       s.GetInt("embedding.concurrency"),
			RequestsPerSecond: s.GetFloat("embedding.requests_per_second"),
		},
		LLM: domain.LLMSettings{
			Provider:          domain.AIProvider(strings.ToLower(s.GetString("llm.provider"))),
			Model:             s.GetString("llm.model"),
			BaseURL:           s.GetString("llm.base_url"),
			APIKey:            s.GetString("llm.api_key"),
			Timeout:           s.GetDuration("llm.timeout"),
			MaxTokens:         s.GetInt("llm.max_tokens"),
			Temperature:       s.GetFloat("llm.temperature"),
			ContextWindow:     s.GetInt("llm.context_window"),
			RequestsPerSecond: s.GetFloat("llm.requests_per_second"),
		},
		RAG: domain.RAGConfig{
			ChunkSize:           s.GetInt("rag.chunk_size"),
			ChunkOverlap:        domain.DefaultChunkOverlap,
			TopK:                s.GetInt("rag.top_k"),
			SimilarityThreshold: domain.DefaultSimilarityThreshold,
		},
		Server: domain.ServerConfig{
			Addr:            s.GetString("server.addr"),
			ReindexSchedule: s.GetString("server.reindex_schedule"),
		},
	}

	// Zero is a meaningful overlap and threshold, so only presence counts.
	if s.Has("rag.chunk_overlap") {
		cfg.RAG.ChunkOverlap = s.GetInt("rag.chunk_overlap")
	}
	if s.Has("rag.similarity_threshold") {
		cfg.RAG.SimilarityThreshold = s.GetFloat("rag.similarity_threshold")
	}
	return cfg
}

// applyOllamaShorthand applies the ollama section to backends that use
// Ollama and have no explicit setting.
func applyOllamaShorthand(cfg *domain.Config, s *ConfigStore) {
	baseURL := s.GetString("ollama.base_url")

	emb := &cfg.Embedding
	if emb.Provider == "" || emb.Provider == domain.AIProviderOllama {
		if emb.BaseURL == "" {
			emb.BaseURL = baseURL
		}
		if emb.Model == "" {
			emb.Model = s.GetString("ollama.embed_model")
		}
	}

	llm := &cfg.LLM
	if llm.Provider == "" || llm.Provider == domain.AIProviderOllama {
		if llm.BaseURL == "" {
			llm.BaseURL = baseURL
		}
		if llm.Model == "" {
			llm.Model = s.GetString("ollama.llm_model")
		}
	}
	if llm.Timeout == 0 {
		llm.Timeout = s.GetDuration("ollama.request_timeout")
	}
}

func applyEnv(cfg *domain.Config, env *envOverrides) {
	setString(&cfg.Zotero.DataDir, env.ZoteroDataDir)
	setString(&cfg.Zotero.StorageDir, env.ZoteroStorageDir)
	setString(&cfg.Zotero.Database, env.ZoteroDatabase)
	setString(&cfg.Paths.CacheDir, env.CacheDir)
	setString(&cfg.Paths.VectorDB, env.VectorDB)

	if env.EmbeddingProvider != nil {
		cfg.Embedding.Provider = domain.AIProvider(strings.ToLower(*env.EmbeddingProvider))
	}
	setString(&cfg.Embedding.Model, env.EmbeddingModel)
	setString(&cfg.Embedding.BaseURL, env.EmbeddingBaseURL)
	setString(&cfg.Embedding.APIKey, env.EmbeddingAPIKey)

	if env.LLMProvider != nil {
		cfg.LLM.Provider = domain.AIProvider(strings.ToLower(*env.LLMProvider))
	}
	setString(&cfg.LLM.Model, env.LLMModel)
	setString(&cfg.LLM.BaseURL, env.LLMBaseURL)
	setString(&cfg.LLM.APIKey, env.LLMAPIKey)

	if env.TopK != nil {
		cfg.RAG.TopK = *env.TopK
	}
	if env.SimilarityThreshold != nil {
		cfg.RAG.SimilarityThreshold = *env.SimilarityThreshold
	}
	setString(&cfg.Server.Addr, env.ServerAddr)
	setString(&cfg.Server.ReindexSchedule, env.ReindexSchedule)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func applyProviderKeys(dst *string, provider domain.AIProvider, keys providerKeys) {
	if *dst != "" {
		return
	}
	switch provider {
	case domain.AIProviderOpenAI:
		*dst = keys.OpenAI
	case domain.AIProviderAnthropic:
		*dst = keys.Anthropic
	}
}

func expandPaths(cfg *domain.Config) {
	for _, p := range []*string{
		&cfg.Zotero.DataDir,
		&cfg.Zotero.StorageDir,
		&cfg.Zotero.Database,
		&cfg.Paths.CacheDir,
		&cfg.Paths.VectorDB,
	} {
		*p = ExpandHome(*p)
	}
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// ErrConfigNotFound indicates no configuration file was found.
var ErrConfigNotFound = fmt.Errorf("no %s found: %w", ConfigFileName, domain.ErrConfig)

// Candidates returns the configuration paths tried by Discover, in order:
// the explicit path, $LOCALKNOWLEDGE_CONFIG, the executable's directory,
// ~/LocalKnowledge and the working directory.
func Candidates(explicit string) []string {
	if explicit != "" {
		return []string{ExpandHome(explicit)}
	}

	var out []string
	if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
		out = append(out, ExpandHome(env))
	}
	if exe, err := os.Executable(); err == nil {
		out = append(out, filepath.Join(filepath.Dir(exe), ConfigFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out,
			filepath.Join(home, "LocalKnowledge", ConfigFileName),
			filepath.Join(home, "LocalKnowledge", "config.toml"),
		)
	}
	return append(out, ConfigFileName, "config.toml")
}

// Discover returns the first existing candidate path.
func Discover(explicit string) (string, error) {
	for _, p := range Candidates(explicit) {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Debug("skipping config candidate %s: %v", p, err)
		}
	}
	if explicit != "" {
		return "", fmt.Errorf("config %s does not exist: %w", explicit, domain.ErrConfig)
	}
	return "", ErrConfigNotFound
}
