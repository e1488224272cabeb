// Package provider builds AI components from configuration.
package provider

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/ai"
	"github.com/spigell/vacancy-matcher/internal/ai/embedding"
	"github.com/spigell/vacancy-matcher/internal/ai/gemini"
	"github.com/spigell/vacancy-matcher/internal/ai/llm"
	"github.com/spigell/vacancy-matcher/internal/ai/openai"
	"github.com/spigell/vacancy-matcher/internal/ai/prompt"
	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/secrets"
)

const (
	OpenAI = "openai"
	Gemini = "gemini"
)

// NewMatcher returns the configured language model matcher.
func NewMatcher(ctx context.Context, cfg *config.AIConfig, logger *zap.Logger) (ai.Matcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ai configuration is required")
	}

	completer, name, err := newCompleter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	matcher := llm.NewMatcher(completer, name, cfg.MinimumFitScore, cfg.MaxLogLength, logger)
	matcher.SetPromptOverrides(prompt.Overrides{
		ExtraCriteria:     cfg.Prompt.ExtraCriteria,
		DealBreakers:      cfg.Prompt.DealBreakers,
		CustomKeywords:    cfg.Prompt.CustomKeywords,
		Tone:              cfg.Prompt.Tone,
		RegionConstraints: cfg.Prompt.RegionConstraints,
		UserInstructions:  cfg.Prompt.UserInstructions,
	})

	return matcher, nil
}

func newCompleter(ctx context.Context, cfg *config.AIConfig, logger *zap.Logger) (llm.Completer, string, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = OpenAI
	}

	switch name {
	case OpenAI:
		if cfg.OpenAI == nil {
			return nil, "", fmt.Errorf("ai.openai section is required")
		}
		key, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}
		client, err := openai.New(key, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, cfg.MaxRetries, logger)
		if err != nil {
			return nil, "", err
		}
		return client, name, nil
	case Gemini:
		if cfg.Gemini == nil {
			return nil, "", fmt.Errorf("ai.gemini section is required")
		}
		key, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}
		generator, err := gemini.NewGenerator(ctx, key, cfg.Gemini.Model, cfg.MaxRetries, logger)
		if err != nil {
			return nil, "", err
		}
		return generator, name, nil
	default:
		return nil, "", fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// NewEmbedder returns the configured embeddings client.
func NewEmbedder(cfg *config.AIConfig, logger *zap.Logger) (ai.Embedder, error) {
	if cfg == nil || cfg.Embedding == nil {
		return nil, fmt.Errorf("ai.embedding section is required")
	}

	token, err := secrets.LoadOptional(secrets.Source{
		Name:  "embedding api key",
		Value: cfg.Embedding.APIKey,
		File:  cfg.Embedding.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	// Fall back to the chat key when both talk to OpenAI.
	if token == "" && cfg.OpenAI != nil {
		token, err = secrets.LoadOptional(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
	}

	embedder, err := embedding.New(embedding.Config{
		Host:  cfg.Embedding.Host,
		Model: cfg.Embedding.Model,
		Token: token,
	}, logger)
	if err != nil {
		return nil, err
	}
	return embedder, nil
}
