package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"notecast/internal/services"
)

const anthropicProviderKey = "anthropic"

// AnthropicConfig captures Claude connection settings.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string
}

// AnthropicClient generates text with Claude models.
type AnthropicClient struct {
	cfg      AnthropicConfig
	messages anthropic.MessageService
}

// NewAnthropicClient constructs a Claude client.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{cfg: cfg, messages: client.Messages}
}

// Name reports the provider key.
func (c *AnthropicClient) Name() string { return anthropicProviderKey }

// Generate sends a single-turn message and concatenates the text blocks of the reply.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := req.validate("anthropic generate"); err != nil {
		return "", err
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", "anthropic", "api key required (anthropic.api_key or ANTHROPIC_API_KEY)", nil)
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := c.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	user := strings.TrimSpace(req.User)
	if req.JSON {
		user += "\n\nRespond with a single JSON object and nothing else."
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		// Always sent: the API default of 1.0 would replace an explicit 0.
		Temperature: anthropic.Float(clampTemperature(req.Temperature, 1)),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}
	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("anthropic generate: empty content (stop_reason=%q)", resp.StopReason)
	}
	return text, nil
}

func clampTemperature(value, ceiling float64) float64 {
	if value < 0 {
		return 0
	}
	if value > ceiling {
		return ceiling
	}
	return value
}
