// Package services defines shared utilities consumed by the engine, the
// episode pipeline, and external provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp episode IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is (validation, not found, chunking, provider).
//
// Provider clients live in subpackages: llm for text generation and tts for
// speech synthesis.
package services
