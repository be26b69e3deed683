// Package catalog validates and manages transformations and episode templates
// on top of the store.
//
// Input structs carry go-playground/validator tags; failures surface as
// services.ErrValidation with the offending field names. Templates can be
// imported from TOML files, and a default template is seeded on first start.
package catalog
