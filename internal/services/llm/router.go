package llm

import (
	"context"
	"fmt"
	"strings"

	"notecast/internal/config"
	"notecast/internal/services"
)

// Backend is a named Generator.
type Backend interface {
	Generator
	Name() string
}

// Router dispatches generation requests to a backend chosen by model name.
// Models prefixed "claude-" go to Anthropic, "gemini-" to Gemini, and
// everything else (including OpenRouter "vendor/model" ids) to the default
// provider.
type Router struct {
	fallback string
	backends map[string]Backend
}

// NewRouter assembles a router over the supplied backends. fallback names the
// provider used when the model carries no recognizable prefix.
func NewRouter(fallback string, backends ...Backend) *Router {
	r := &Router{fallback: strings.ToLower(strings.TrimSpace(fallback)), backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		if b != nil {
			r.backends[b.Name()] = b
		}
	}
	return r
}

// NewRouterFromConfig wires the OpenRouter, Anthropic, and Gemini backends from config.
func NewRouterFromConfig(cfg *config.Config) *Router {
	llmCfg := cfg.GetLLM()
	return NewRouter(cfg.LLM.Provider,
		NewClient(Config{
			APIKey:         llmCfg.APIKey,
			BaseURL:        llmCfg.BaseURL,
			Model:          llmCfg.Model,
			Referer:        llmCfg.Referer,
			Title:          llmCfg.Title,
			TimeoutSeconds: llmCfg.TimeoutSeconds,
		}),
		NewAnthropicClient(AnthropicConfig{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
		}),
		NewGeminiClient(GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		}),
	)
}

// Resolve returns the provider key that will serve model.
func (r *Router) Resolve(model string) string {
	normalized := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(normalized, "claude-"):
		return anthropicProviderKey
	case strings.HasPrefix(normalized, "gemini-"):
		return geminiProviderKey
	default:
		return r.fallback
	}
}

// Generate routes req to the backend that owns its model.
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	key := r.Resolve(req.Model)
	backend, ok := r.backends[key]
	if !ok {
		return "", services.Wrap(services.ErrConfiguration, "llm", "route", fmt.Sprintf("no backend for provider %q", key), nil)
	}
	return backend.Generate(ctx, req)
}
