// Package config loads, normalizes, and validates notecast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for provider
// credentials (OPENROUTER_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY,
// OPENAI_API_KEY). The Config type centralizes every knob the daemon and CLI
// need: storage paths, text-generation and speech providers, chunking units,
// episode length profiles, and notification settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
