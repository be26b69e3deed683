package catalog

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"notecast/internal/services"
)

// PromptData is the data a transformation prompt may reference.
type PromptData struct {
	Title       string
	SourceTitle string
	SourceKind  string
}

func parsePrompt(name, prompt string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(prompt)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "parse prompt", err.Error(), nil)
	}
	return tmpl, nil
}

// RenderPrompt executes a transformation prompt against data.
func RenderPrompt(name, prompt string, data PromptData) (string, error) {
	tmpl, err := parsePrompt(name, prompt)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", services.Wrap(services.ErrValidation, "catalog", "render prompt", fmt.Sprintf("transformation %q: %v", name, err), nil)
	}
	return strings.TrimSpace(buf.String()), nil
}
