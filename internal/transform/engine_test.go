package transform_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"notecast/internal/catalog"
	"notecast/internal/logging"
	"notecast/internal/services"
	"notecast/internal/services/llm"
	"notecast/internal/store"
	"notecast/internal/testsupport"
	"notecast/internal/transform"
)

type fixture struct {
	store  *store.Store
	source *store.Source
	gen    *testsupport.FakeGenerator
	engine *transform.Engine
}

func newFixture(t *testing.T, opts transform.Options) *fixture {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	nb := testsupport.NewNotebook(t, st, "Notebook")
	src := testsupport.AddTextSource(t, st, nb.ID, "Quarterly report", "Revenue grew. Costs fell. Outlook is stable.")
	if _, err := catalog.NewTransformations(st).Create(context.Background(), catalog.TransformationInput{
		Name:   "summary",
		Title:  "Summary",
		Prompt: "Summarize the {{ .SourceKind }} titled {{ .SourceTitle }}.",
	}); err != nil {
		t.Fatalf("Create transformation failed: %v", err)
	}
	gen := &testsupport.FakeGenerator{Responses: []string{"First take.", "Second take."}}
	return &fixture{
		store:  st,
		source: src,
		gen:    gen,
		engine: transform.NewEngine(st, gen, opts, logging.NewNop()),
	}
}

func TestApplyTwiceAppendsTwoInsights(t *testing.T) {
	f := newFixture(t, transform.Options{Temperature: 0.3})
	ctx := context.Background()

	first, err := f.engine.Apply(ctx, "summary", f.source.ID)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	second, err := f.engine.Apply(ctx, "summary", f.source.ID)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct insight ids")
	}
	if first.InsightType != "summary" || second.InsightType != "summary" {
		t.Fatalf("unexpected insight types %q %q", first.InsightType, second.InsightType)
	}

	insights, err := f.engine.ListInsights(ctx, f.source.ID)
	if err != nil {
		t.Fatalf("ListInsights failed: %v", err)
	}
	if len(insights) != 2 || insights[0].Content != "First take." || insights[1].Content != "Second take." {
		t.Fatalf("unexpected insights %#v", insights)
	}

	calls := f.gen.Calls()
	if calls[0].System != "Summarize the Text titled Quarterly report." {
		t.Fatalf("unexpected system prompt %q", calls[0].System)
	}
	if !strings.Contains(calls[0].User, "Revenue grew.") {
		t.Fatalf("source text missing from request: %q", calls[0].User)
	}
}

func TestApplyProviderFailureCreatesNothing(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		responses []string
		want      error
	}{
		{"error", fmt.Errorf("upstream 500"), nil, services.ErrProvider},
		{"blank output", nil, []string{"   "}, services.ErrProvider},
		{"timeout", context.DeadlineExceeded, nil, services.ErrTimeout},
		{"missing key", services.Wrap(services.ErrConfiguration, "llm", "generate", "api key required", nil), nil, services.ErrConfiguration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, transform.Options{})
			gen := &testsupport.FakeGenerator{Err: tc.err, Responses: tc.responses}
			engine := transform.NewEngine(f.store, gen, transform.Options{}, nil)
			insight, err := engine.Apply(context.Background(), "summary", f.source.ID)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if insight != nil {
				t.Fatalf("expected no insight alongside error, got %#v", insight)
			}
			insights, _ := f.store.ListInsights(context.Background(), f.source.ID)
			if len(insights) != 0 {
				t.Fatalf("expected no persisted insights, got %d", len(insights))
			}
		})
	}
}

func TestApplyValidationErrors(t *testing.T) {
	f := newFixture(t, transform.Options{})
	ctx := context.Background()

	if _, err := f.engine.Apply(ctx, "missing", f.source.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown transformation, got %v", err)
	}
	if _, err := f.engine.Apply(ctx, "summary", "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown source, got %v", err)
	}

	blank := testsupport.AddTextSource(t, f.store, f.source.NotebookID, "Blank", " \n\t ")
	if _, err := f.engine.Apply(ctx, "summary", blank.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for blank source, got %v", err)
	}
	if len(f.gen.Calls()) != 0 {
		t.Fatal("provider should not be called for rejected input")
	}
}

func TestApplyTruncatesLongInput(t *testing.T) {
	f := newFixture(t, transform.Options{MaxInputChars: 14})
	if _, err := f.engine.Apply(context.Background(), "summary", f.source.ID); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := f.gen.Calls()[0].User; got != "Revenue grew." {
		t.Fatalf("unexpected truncated input %q", got)
	}
}

func TestApplyDefault(t *testing.T) {
	f := newFixture(t, transform.Options{})
	ctx := context.Background()

	insight, err := f.engine.ApplyDefault(ctx, f.source.ID)
	if err != nil || insight != nil {
		t.Fatalf("expected no-op without default, got %#v, %v", insight, err)
	}

	tr, err := f.store.GetTransformationByName(ctx, "summary")
	if err != nil {
		t.Fatalf("GetTransformationByName failed: %v", err)
	}
	if _, err := f.store.SetDefaultTransformation(ctx, tr.ID); err != nil {
		t.Fatalf("SetDefaultTransformation failed: %v", err)
	}
	insight, err = f.engine.ApplyDefault(ctx, f.source.ID)
	if err != nil {
		t.Fatalf("ApplyDefault failed: %v", err)
	}
	if insight == nil || insight.InsightType != "summary" {
		t.Fatalf("unexpected default insight %#v", insight)
	}
}

func TestModelAndTemperatureForwarded(t *testing.T) {
	var captured llm.Request
	gen := &testsupport.FakeGenerator{Respond: func(req llm.Request) (string, error) {
		captured = req
		return "ok", nil
	}}
	f := newFixture(t, transform.Options{})
	engine := transform.NewEngine(f.store, gen, transform.Options{Model: "claude-sonnet-4-5", Temperature: 0.7}, nil)
	if _, err := engine.Apply(context.Background(), "summary", f.source.ID); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if captured.Model != "claude-sonnet-4-5" || captured.Temperature != 0.7 {
		t.Fatalf("unexpected request %#v", captured)
	}
}
