// Package llm provides the text generation backends used for transformations
// and podcast scripts.
//
// # Backends
//
// Client talks to the OpenRouter chat completion API. AnthropicClient wraps the
// Claude Messages API and GeminiClient wraps Gemini GenerateContent. Router
// picks one per request: "claude-*" models go to Anthropic, "gemini-*" models
// to Gemini, and everything else to the configured default provider.
//
// # Entry Points
//
// NewRouterFromConfig: wire every backend from config.
// Router.Generate: send a system/user prompt pair, receive text.
// Client.HealthCheck: verify the OpenRouter key and model.
// DecodeLLMJSON: decode JSON replies that arrive fenced or wrapped in prose.
//
// # Retry Behaviour
//
// The OpenRouter client retries on HTTP 408/429/5xx errors, empty content, and
// network timeouts with exponential backoff (base 1s, max 10s, up to 5
// attempts by default). The SDK-backed clients rely on their SDK's retries.
// Context cancellation aborts retries immediately.
package llm
