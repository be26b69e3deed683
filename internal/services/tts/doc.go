// Package tts provides the speech synthesis backends used to voice podcast
// scripts.
//
// Backends return 24 kHz 16-bit mono PCM so segments can be concatenated
// directly by the audio package. OpenAIClient targets any OpenAI-compatible
// /audio/speech endpoint; GeminiClient uses Gemini's speech generation models.
// Limited wraps a backend with a shared request-rate limiter.
package tts
