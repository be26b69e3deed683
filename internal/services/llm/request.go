package llm

import (
	"context"
	"strings"

	"notecast/internal/services"
)

// Request describes a single text generation call.
type Request struct {
	// Model overrides the backend's configured model when set.
	Model       string
	System      string
	User        string
	Temperature float64
	// JSON asks the backend for a JSON object response where supported.
	JSON bool
	// MaxTokens caps output length for backends that require it.
	MaxTokens int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func (r Request) validate(op string) error {
	if strings.TrimSpace(r.User) == "" {
		return services.Wrap(services.ErrValidation, "llm", op, "user prompt required", nil)
	}
	return nil
}
