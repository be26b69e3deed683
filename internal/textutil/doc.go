// Package textutil provides text normalization helpers shared by ingestion,
// the transformation engine, and chunk selection.
//
// The primary use cases are:
//   - Normalizing raw source text (Unicode NFC, line endings, whitespace)
//   - Truncating long text at a word boundary
//   - Deriving display titles and safe file names
package textutil
