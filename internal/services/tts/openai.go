package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"notecast/internal/audio"
	"notecast/internal/services"
	"notecast/internal/services/retry"
)

const (
	defaultSpeechURL   = "https://api.openai.com/v1/audio/speech"
	defaultHTTPTimeout = 120 * time.Second
)

// OpenAIConfig captures the settings for an OpenAI-compatible speech endpoint.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// OpenAIClient calls an OpenAI-compatible /audio/speech endpoint.
type OpenAIClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	policy     retry.Policy
}

// OpenAIOption customizes the client.
type OpenAIOption func(*OpenAIClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy retry.Policy) OpenAIOption {
	return func(c *OpenAIClient) {
		c.policy = policy
	}
}

// NewOpenAIClient constructs a speech client.
func NewOpenAIClient(cfg OpenAIConfig, opts ...OpenAIOption) *OpenAIClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &OpenAIClient{
		cfg: OpenAIConfig{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultSpeechURL
	}
	return client
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize requests raw PCM for text in the given voice.
func (c *OpenAIClient) Synthesize(ctx context.Context, text, voice string) (Segment, error) {
	if err := validateInput("openai synthesize", text, voice); err != nil {
		return Segment{}, err
	}
	if c.cfg.APIKey == "" {
		return Segment{}, services.Wrap(services.ErrConfiguration, "tts", "openai", "api key required (tts.api_key or OPENAI_API_KEY)", nil)
	}
	encoded, err := json.Marshal(speechRequest{
		Model:          c.cfg.Model,
		Input:          strings.TrimSpace(text),
		Voice:          strings.TrimSpace(voice),
		ResponseFormat: "pcm",
	})
	if err != nil {
		return Segment{}, fmt.Errorf("openai speech: encode body: %w", err)
	}

	var pcm []byte
	err = c.policy.Do(ctx, "openai speech", func(int) error {
		body, err := c.send(ctx, encoded)
		if err != nil {
			return err
		}
		pcm = audio.StripWAVHeader(body)
		return nil
	})
	if err != nil {
		return Segment{}, err
	}
	if len(pcm) == 0 {
		return Segment{}, errors.New("openai speech: empty audio")
	}
	return NewSegment(pcm), nil
}

func (c *OpenAIClient) send(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai speech: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai speech: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai speech: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, retry.NewStatusError("openai speech", resp, body)
	}
	return body, nil
}
