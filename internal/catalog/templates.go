package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"notecast/internal/services"
	"notecast/internal/store"
)

// DefaultTemplateName names the template seeded into an empty catalog.
const DefaultTemplateName = "deep_dive"

// DefaultTemplate returns the seeded two-host template.
func DefaultTemplate() store.EpisodeTemplate {
	return store.EpisodeTemplate{
		Name:                 DefaultTemplateName,
		PodcastName:          "Deep Dive",
		Tagline:              "Your notebook, explained out loud",
		Language:             "English",
		Person1Roles:         []string{"main summarizer", "enthusiastic guide"},
		Person2Roles:         []string{"questioner", "clarifier"},
		ConversationStyle:    []string{"engaging", "fast-paced", "enthusiastic"},
		EngagementTechniques: []string{"rhetorical questions", "anecdotes", "analogies"},
		DialogueStructure:    []string{"Introduction", "Key Points", "Discussion", "Conclusion"},
		Creativity:           0.5,
		Voice1:               "alloy",
		Voice2:               "nova",
		EndingMessage:        "Thanks for listening, see you next time!",
	}
}

// Templates manages episode templates.
type Templates struct {
	store    *store.Store
	validate *validator.Validate
}

// NewTemplates returns a template catalog backed by st.
func NewTemplates(st *store.Store) *Templates {
	return &Templates{store: st, validate: newValidator()}
}

func normalizeTemplate(tpl store.EpisodeTemplate) store.EpisodeTemplate {
	tpl.Name = strings.TrimSpace(tpl.Name)
	tpl.PodcastName = strings.TrimSpace(tpl.PodcastName)
	tpl.Tagline = strings.TrimSpace(tpl.Tagline)
	tpl.Language = strings.TrimSpace(tpl.Language)
	if tpl.Language == "" {
		tpl.Language = "English"
	}
	tpl.Person1Roles = cleanList(tpl.Person1Roles)
	tpl.Person2Roles = cleanList(tpl.Person2Roles)
	tpl.ConversationStyle = cleanList(tpl.ConversationStyle)
	tpl.EngagementTechniques = cleanList(tpl.EngagementTechniques)
	tpl.DialogueStructure = cleanList(tpl.DialogueStructure)
	tpl.Voice1 = strings.TrimSpace(tpl.Voice1)
	tpl.Voice2 = strings.TrimSpace(tpl.Voice2)
	tpl.EndingMessage = strings.TrimSpace(tpl.EndingMessage)
	tpl.Model = strings.TrimSpace(tpl.Model)
	return tpl
}

// Validate normalizes a template and checks it.
func (c *Templates) Validate(tpl store.EpisodeTemplate) (store.EpisodeTemplate, error) {
	tpl = normalizeTemplate(tpl)
	if err := c.validate.Struct(tpl); err != nil {
		return tpl, validationError("validate template", err)
	}
	return tpl, nil
}

// List returns all templates sorted by name.
func (c *Templates) List(ctx context.Context) ([]*store.EpisodeTemplate, error) {
	return c.store.ListTemplates(ctx)
}

// Get returns a template by name.
func (c *Templates) Get(ctx context.Context, name string) (*store.EpisodeTemplate, error) {
	return c.store.GetTemplate(ctx, strings.TrimSpace(name))
}

// Create validates and inserts a template; the name must be unused.
func (c *Templates) Create(ctx context.Context, tpl store.EpisodeTemplate) (*store.EpisodeTemplate, error) {
	tpl, err := c.Validate(tpl)
	if err != nil {
		return nil, err
	}
	return c.store.CreateTemplate(ctx, tpl)
}

// Save validates and inserts or replaces a template.
func (c *Templates) Save(ctx context.Context, tpl store.EpisodeTemplate) (*store.EpisodeTemplate, error) {
	tpl, err := c.Validate(tpl)
	if err != nil {
		return nil, err
	}
	return c.store.SaveTemplate(ctx, tpl)
}

// Delete removes a template by name.
func (c *Templates) Delete(ctx context.Context, name string) error {
	return c.store.DeleteTemplate(ctx, strings.TrimSpace(name))
}

// EnsureDefault seeds DefaultTemplate when the catalog is empty and reports
// whether it did.
func (c *Templates) EnsureDefault(ctx context.Context) (bool, error) {
	existing, err := c.store.ListTemplates(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	if _, err := c.Save(ctx, DefaultTemplate()); err != nil {
		return false, err
	}
	return true, nil
}

type templateFile struct {
	Templates []store.EpisodeTemplate `toml:"templates"`
}

// ParseTemplates decodes TOML holding either a [[templates]] array or a
// single template at the top level.
func ParseTemplates(data []byte) ([]store.EpisodeTemplate, error) {
	var file templateFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "parse templates", err.Error(), nil)
	}
	if len(file.Templates) > 0 {
		return file.Templates, nil
	}
	var single store.EpisodeTemplate
	if err := toml.Unmarshal(data, &single); err != nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "parse templates", err.Error(), nil)
	}
	if strings.TrimSpace(single.Name) == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "parse templates", "no templates found", nil)
	}
	return []store.EpisodeTemplate{single}, nil
}

// Import validates every template in the TOML file at path before saving any.
func (c *Templates) Import(ctx context.Context, path string) ([]*store.EpisodeTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "catalog", "import templates", path, err)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return c.ImportData(ctx, data)
}

// ImportData validates every template in a TOML document before saving any.
func (c *Templates) ImportData(ctx context.Context, data []byte) ([]*store.EpisodeTemplate, error) {
	parsed, err := ParseTemplates(data)
	if err != nil {
		return nil, err
	}
	valid := make([]store.EpisodeTemplate, 0, len(parsed))
	for i, tpl := range parsed {
		checked, err := c.Validate(tpl)
		if err != nil {
			return nil, fmt.Errorf("template %d (%s): %w", i+1, tpl.Name, err)
		}
		valid = append(valid, checked)
	}
	saved := make([]*store.EpisodeTemplate, 0, len(valid))
	for _, tpl := range valid {
		out, err := c.store.SaveTemplate(ctx, tpl)
		if err != nil {
			return saved, err
		}
		saved = append(saved, out)
	}
	return saved, nil
}
