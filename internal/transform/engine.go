package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"notecast/internal/catalog"
	"notecast/internal/config"
	"notecast/internal/logging"
	"notecast/internal/services"
	"notecast/internal/services/llm"
	"notecast/internal/store"
	"notecast/internal/textutil"
)

// Store is the persistence the engine reads and appends to.
type Store interface {
	GetTransformationByName(ctx context.Context, name string) (*store.Transformation, error)
	DefaultTransformation(ctx context.Context) (*store.Transformation, error)
	GetSource(ctx context.Context, id string) (*store.Source, error)
	AppendInsight(ctx context.Context, sourceID, insightType, content string) (*store.Insight, error)
	ListInsights(ctx context.Context, sourceID string) ([]*store.Insight, error)
	DeleteInsight(ctx context.Context, id string) error
}

// Options tunes generation.
type Options struct {
	Model         string
	Temperature   float64
	MaxInputChars int
}

// OptionsFromConfig extracts engine options from the transform section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Model:         cfg.Transform.Model,
		Temperature:   cfg.Transform.Temperature,
		MaxInputChars: cfg.Transform.MaxInputChars,
	}
}

// Engine turns a source's text into an insight with one generation call.
type Engine struct {
	store     Store
	generator llm.Generator
	opts      Options
	logger    *slog.Logger
}

// NewEngine wires an engine.
func NewEngine(st Store, generator llm.Generator, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		store:     st,
		generator: generator,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "transform"),
	}
}

// Apply runs the named transformation against a source and appends the
// result as a new insight typed with the transformation name.
func (e *Engine) Apply(ctx context.Context, transformationName, sourceID string) (*store.Insight, error) {
	tr, err := e.store.GetTransformationByName(ctx, strings.TrimSpace(transformationName))
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, tr, sourceID)
}

// ApplyDefault runs the catalog's default transformation, if any, against a
// source. It returns nil without error when no default is set.
func (e *Engine) ApplyDefault(ctx context.Context, sourceID string) (*store.Insight, error) {
	tr, err := e.store.DefaultTransformation(ctx)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, nil
	}
	return e.apply(ctx, tr, sourceID)
}

func (e *Engine) apply(ctx context.Context, tr *store.Transformation, sourceID string) (*store.Insight, error) {
	src, err := e.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	text := textutil.NormalizeText(src.FullText)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "transform", "apply",
			fmt.Sprintf("source %s has no text", src.ID), nil)
	}

	system, err := catalog.RenderPrompt(tr.Name, tr.Prompt, catalog.PromptData{
		Title:       tr.Title,
		SourceTitle: src.Title,
		SourceKind:  src.Kind.Label(),
	})
	if err != nil {
		return nil, err
	}

	text, truncated := textutil.TruncateAtWord(text, e.opts.MaxInputChars)
	logger := e.logger.With(
		logging.String(logging.FieldSourceID, src.ID),
		logging.String("transformation", tr.Name),
	)
	if truncated {
		logging.WarnWithContext(logger, "source text truncated", "transform_input_truncated",
			logging.Int("max_input_chars", e.opts.MaxInputChars),
			logging.String(logging.FieldErrorHint, "raise transform.max_input_chars or set it to 0"),
			logging.String(logging.FieldImpact, "insight covers only the leading part of the source"),
		)
	}

	output, err := e.generator.Generate(ctx, llm.Request{
		Model:       e.opts.Model,
		System:      system,
		User:        text,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		return nil, classifyProviderError("apply", err)
	}
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, services.Wrap(services.ErrProvider, "transform", "apply", "provider returned empty output", nil)
	}

	insight, err := e.store.AppendInsight(ctx, src.ID, tr.Name, output)
	if err != nil {
		return nil, err
	}
	logger.Info("insight created",
		logging.String("insight_id", insight.ID),
		logging.Int("chars", len(output)),
	)
	return insight, nil
}

// ListInsights returns a source's insights in creation order.
func (e *Engine) ListInsights(ctx context.Context, sourceID string) ([]*store.Insight, error) {
	if _, err := e.store.GetSource(ctx, sourceID); err != nil {
		return nil, err
	}
	return e.store.ListInsights(ctx, sourceID)
}

// DeleteInsight removes one insight.
func (e *Engine) DeleteInsight(ctx context.Context, id string) error {
	return e.store.DeleteInsight(ctx, id)
}

// classifyProviderError keeps configuration and validation markers and tags
// everything else as a provider or timeout failure.
func classifyProviderError(op string, err error) error {
	switch {
	case errors.Is(err, services.ErrConfiguration),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrProvider),
		errors.Is(err, services.ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "transform", op, "generation timed out", err)
	}
	return services.Wrap(services.ErrProvider, "transform", op, "generation failed", err)
}
