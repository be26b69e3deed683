package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"notecast/internal/catalog"
	"notecast/internal/services"
	"notecast/internal/testsupport"
)

func TestTransformationValidation(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	c := catalog.NewTransformations(st)
	ctx := context.Background()

	tests := []struct {
		name string
		in   catalog.TransformationInput
		want string
	}{
		{"missing name", catalog.TransformationInput{Prompt: "p"}, "name is required"},
		{"missing prompt", catalog.TransformationInput{Name: "n", Prompt: "  "}, "prompt is required"},
		{"bad template", catalog.TransformationInput{Name: "n", Prompt: "{{ .Title "}, "parse prompt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Create(ctx, tc.in)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestTransformationCreateUpdateDefault(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	c := catalog.NewTransformations(st)
	ctx := context.Background()

	first, err := c.Create(ctx, catalog.TransformationInput{Name: "summary", Prompt: "Summarize {{ .SourceTitle }}", ApplyDefault: true})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if first.Title != "summary" || !first.ApplyDefault {
		t.Fatalf("unexpected transformation %#v", first)
	}
	second, err := c.Create(ctx, catalog.TransformationInput{Name: "questions", Title: "Questions", Prompt: "List questions"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := c.Update(ctx, second.ID, catalog.TransformationInput{Name: "questions", Title: "Open Questions", Prompt: "List open questions", ApplyDefault: true})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != "Open Questions" || !updated.ApplyDefault {
		t.Fatalf("unexpected update %#v", updated)
	}
	def, err := c.Default(ctx)
	if err != nil || def == nil || def.ID != second.ID {
		t.Fatalf("Default = %#v, %v", def, err)
	}
	list, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "questions" || list[1].ApplyDefault {
		t.Fatalf("unexpected list %#v", list)
	}
}

func TestRenderPrompt(t *testing.T) {
	out, err := catalog.RenderPrompt("t", "Summarize the {{ .SourceKind }} {{ printf \"%q\" .SourceTitle }}.", catalog.PromptData{SourceTitle: "Report", SourceKind: "Text"})
	if err != nil {
		t.Fatalf("RenderPrompt failed: %v", err)
	}
	if out != `Summarize the Text "Report".` {
		t.Fatalf("unexpected prompt %q", out)
	}
	if _, err := catalog.RenderPrompt("t", "{{ .Missing }}", catalog.PromptData{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown field, got %v", err)
	}
}

func TestTemplateValidation(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	c := catalog.NewTemplates(st)

	tpl := testsupport.Template("bad")
	tpl.Creativity = 1.5
	tpl.Voice2 = " "
	_, err := c.Create(context.Background(), tpl)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"creativity", "voice2"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q does not mention %s", err, field)
		}
	}

	tpl = testsupport.Template("roles")
	tpl.Person1Roles = []string{"", "  "}
	if _, err := c.Create(context.Background(), tpl); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty roles, got %v", err)
	}
}

func TestEnsureDefaultSeedsOnce(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	c := catalog.NewTemplates(st)
	ctx := context.Background()

	seeded, err := c.EnsureDefault(ctx)
	if err != nil || !seeded {
		t.Fatalf("EnsureDefault = %v, %v", seeded, err)
	}
	seeded, err = c.EnsureDefault(ctx)
	if err != nil || seeded {
		t.Fatalf("second EnsureDefault = %v, %v", seeded, err)
	}
	if _, err := c.Get(ctx, catalog.DefaultTemplateName); err != nil {
		t.Fatalf("Get default failed: %v", err)
	}
}

func TestImportTemplates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	c := catalog.NewTemplates(st)
	path := filepath.Join(testsupport.BaseDir(cfg), "templates.toml")
	testsupport.WriteFile(t, path, `
[[templates]]
name = "tech"
podcast_name = "Tech Talk"
person1_roles = ["host"]
person2_roles = ["engineer"]
conversation_style = ["casual"]
engagement_techniques = ["examples"]
dialogue_structure = ["intro", "deep dive"]
creativity = 0.7
voice1 = "alloy"
voice2 = "echo"
ending_message = "Bye"

[[templates]]
name = "news"
podcast_name = "Daily Notes"
person1_roles = ["anchor"]
person2_roles = ["reporter"]
voice1 = "Kore"
voice2 = "Puck"
`)

	saved, err := c.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(saved) != 2 || saved[0].Name != "tech" || saved[1].Language != "English" {
		t.Fatalf("unexpected imported templates %#v", saved)
	}

	bad := filepath.Join(testsupport.BaseDir(cfg), "bad.toml")
	testsupport.WriteFile(t, bad, "name = \"solo\"\nvoice1 = \"a\"\n")
	if _, err := c.Import(context.Background(), bad); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := c.Get(context.Background(), "solo"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("invalid template should not be saved, got %v", err)
	}
}
