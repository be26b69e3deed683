// Package api defines wire-format types and converters for the HTTP API. It
// translates store models into transport-friendly DTOs that the CLI and other
// consumers can render without coupling to internal types.
//
// # Key Types
//
// Notebook, Source, Note: content store entries. Source omits the raw content
// unless a caller asks for it.
//
// Transformation, Insight: transformation catalog entries and their results.
//
// Episode: generation job state with status, progress stage, duration, and
// failure reason. AudioURL is only set for completed episodes.
//
// ErrorResponse: the body of every non-2xx response, carrying a short
// machine-readable code from services.Code.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums (store.Status, store.SourceKind,
// store.LengthCategory) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds. Episode templates travel as store.EpisodeTemplate,
// whose snake_case tags match the TOML import format.
package api
