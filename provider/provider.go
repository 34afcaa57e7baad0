package provider

import (
	"context"
	"errors"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/models"
	openrouter_provider "github.com/slanderwatch/slanderwatch/provider/openrouter"
)

// Client represents different LLM providers
type Client string

const (
	OpenRouter Client = "openrouter"
	OpenAI     Client = "openai"
)

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// GenerateSearchPlan turns a natural-language description into
	// per-platform search queries.
	GenerateSearchPlan(ctx context.Context, input string) (models.SearchPlan, error)
	// AnalyzeEvidence runs one fetched snippet through the defamation
	// analyst prompt.
	AnalyzeEvidence(ctx context.Context, ev models.Evidence, target string) (models.Analysis, error)
}

// NewProvider creates a new LLM client based on the provided configuration.
// Both supported providers speak the OpenAI chat completions API; they differ
// only in base URL and key.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch Client(cfg.LLM.Provider) {
	case OpenRouter, OpenAI:
		if cfg.LLM.APIKey == "" {
			return nil, errors.New("llm api key not set (OPENROUTER_API_KEY or llm.api_key)")
		}
		return openrouter_provider.New(cfg.LLM, cfg.Detection), nil
	default:
		return nil, errors.New("unsupported LLM provider: " + cfg.LLM.Provider)
	}
}
