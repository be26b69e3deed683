package catalog

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"notecast/internal/store"
)

// TransformationInput carries the editable fields of a transformation.
type TransformationInput struct {
	Name         string `json:"name" validate:"required,max=100"`
	Title        string `json:"title" validate:"max=200"`
	Description  string `json:"description"`
	Prompt       string `json:"prompt" validate:"required"`
	ApplyDefault bool   `json:"apply_default"`
}

func (in TransformationInput) normalized() TransformationInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Title == "" {
		in.Title = in.Name
	}
	return in
}

// Transformations manages the transformation catalog.
type Transformations struct {
	store    *store.Store
	validate *validator.Validate
}

// NewTransformations returns a catalog backed by st.
func NewTransformations(st *store.Store) *Transformations {
	return &Transformations{store: st, validate: newValidator()}
}

func (c *Transformations) check(op string, in TransformationInput) (TransformationInput, error) {
	in = in.normalized()
	if err := c.validate.Struct(in); err != nil {
		return in, validationError(op, err)
	}
	if _, err := parsePrompt(in.Name, in.Prompt); err != nil {
		return in, err
	}
	return in, nil
}

// List returns all transformations sorted by name.
func (c *Transformations) List(ctx context.Context) ([]*store.Transformation, error) {
	return c.store.ListTransformations(ctx)
}

// Get returns a transformation by id.
func (c *Transformations) Get(ctx context.Context, id string) (*store.Transformation, error) {
	return c.store.GetTransformation(ctx, id)
}

// GetByName returns a transformation by its unique name.
func (c *Transformations) GetByName(ctx context.Context, name string) (*store.Transformation, error) {
	return c.store.GetTransformationByName(ctx, strings.TrimSpace(name))
}

// Create validates and inserts a transformation.
func (c *Transformations) Create(ctx context.Context, in TransformationInput) (*store.Transformation, error) {
	in, err := c.check("create transformation", in)
	if err != nil {
		return nil, err
	}
	return c.store.CreateTransformation(ctx, store.Transformation{
		Name:         in.Name,
		Title:        in.Title,
		Description:  in.Description,
		Prompt:       in.Prompt,
		ApplyDefault: in.ApplyDefault,
	})
}

// Update validates and replaces a transformation's fields. ApplyDefault set
// to true also makes it the default; false leaves the flag alone.
func (c *Transformations) Update(ctx context.Context, id string, in TransformationInput) (*store.Transformation, error) {
	in, err := c.check("update transformation", in)
	if err != nil {
		return nil, err
	}
	return c.store.UpdateTransformation(ctx, store.Transformation{
		ID:           id,
		Name:         in.Name,
		Title:        in.Title,
		Description:  in.Description,
		Prompt:       in.Prompt,
		ApplyDefault: in.ApplyDefault,
	})
}

// Delete removes a transformation; deleting the default clears it.
func (c *Transformations) Delete(ctx context.Context, id string) error {
	return c.store.DeleteTransformation(ctx, id)
}

// SetDefault atomically makes id the only default transformation.
func (c *Transformations) SetDefault(ctx context.Context, id string) (*store.Transformation, error) {
	return c.store.SetDefaultTransformation(ctx, id)
}

// UnsetDefault clears the default transformation, reporting whether one was set.
func (c *Transformations) UnsetDefault(ctx context.Context) (bool, error) {
	return c.store.UnsetDefaultTransformation(ctx)
}

// Default returns the default transformation or nil.
func (c *Transformations) Default(ctx context.Context) (*store.Transformation, error) {
	return c.store.DefaultTransformation(ctx)
}
