// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/SWHsz/LocalKnowledge/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/SWHsz/LocalKnowledge/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/SWHsz/LocalKnowledge/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/SWHsz/LocalKnowledge/internal/adapters/driven/llm/ollama"
	openaillm "github.com/SWHsz/LocalKnowledge/internal/adapters/driven/llm/openai"
	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService // nil when synthesis is unavailable.
	Warnings         []string          // Non-fatal issues, such as an unreachable LLM.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init creates both backends. Embeddings are required: failure to create or
// reach the embedding service is an error. An LLM failure only adds a warning
// and leaves LLMService nil, so retrieval keeps working.
func Init(ctx context.Context, cfg *domain.Config) (*InitResult, error) {
	embedding, err := CreateAndValidateEmbeddingService(ctx, &cfg.Embedding)
	if err != nil {
		return nil, err
	}
	if embedding == nil {
		return nil, fmt.Errorf("embedding provider %q is not configured: %w",
			cfg.Embedding.Provider, domain.ErrEmbeddingUnavailable)
	}

	result := &InitResult{EmbeddingService: embedding}

	llm, err := CreateAndValidateLLMService(ctx, &cfg.LLM)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
	case llm == nil:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("llm provider %q is not configured; answers are disabled", cfg.LLM.Provider))
	default:
		result.LLMService = llm
	}
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns nil without error when the provider is not configured.
func CreateAndValidateEmbeddingService(
	ctx context.Context, settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s at %s unreachable (%w)",
			domain.ErrEmbeddingUnavailable, settings.Provider, settings.BaseURL, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns nil without error when the provider is not configured.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s model %s unreachable (%w)",
			domain.ErrLLMUnavailable, settings.Provider, settings.Model, err)
	}
	return svc, nil
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	case domain.AIProviderAnthropic:
		// Anthropic does not support embeddings.
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := domain.EmbeddingDimensions()[settings.Model]
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:     settings.BaseURL,
		Model:       settings.Model,
		Timeout:     settings.Timeout,
		Dimensions:  dimensions,
		Concurrency: settings.Concurrency,
	})
}

func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:            settings.APIKey,
		BaseURL:           settings.BaseURL,
		Model:             settings.Model,
		Timeout:           settings.Timeout,
		Dimensions:        domain.EmbeddingDimensions()[settings.Model],
		RequestsPerSecond: settings.RequestsPerSecond,
	})
}

func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})
}

func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:            settings.APIKey,
		BaseURL:           settings.BaseURL,
		Model:             settings.Model,
		Timeout:           settings.Timeout,
		RequestsPerSecond: settings.RequestsPerSecond,
	})
}

func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})
}
