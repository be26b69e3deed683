package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"notecast/internal/services"
)

const geminiProviderKey = "gemini"

// GeminiConfig captures Gemini text generation settings.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string
}

// GeminiClient generates text with Gemini models. The underlying genai client
// is created lazily on first use.
type GeminiClient struct {
	cfg GeminiConfig

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiClient constructs a Gemini client.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	return &GeminiClient{cfg: cfg}
}

// Name reports the provider key.
func (c *GeminiClient) Name() string { return geminiProviderKey }

func (c *GeminiClient) ensureClient(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		clientCfg := &genai.ClientConfig{
			APIKey:  c.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if base := strings.TrimSpace(c.cfg.BaseURL); base != "" {
			clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
		}
		c.client, c.initErr = genai.NewClient(ctx, clientCfg)
	})
	if c.initErr != nil {
		return nil, fmt.Errorf("gemini client: %w", c.initErr)
	}
	return c.client, nil
}

// Generate sends a single-turn prompt and returns the first candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := req.validate("gemini generate"); err != nil {
		return "", err
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", "gemini", "api key required (gemini.api_key or GEMINI_API_KEY)", nil)
	}
	client, err := c.ensureClient(ctx)
	if err != nil {
		return "", err
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(clampTemperature(req.Temperature, 2))),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	contents := []*genai.Content{genai.NewContentFromText(strings.TrimSpace(req.User), genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(candidateText(resp))
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty content")
	}
	return text, nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var out strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				out.WriteString(part.Text)
			}
		}
		if out.Len() > 0 {
			break
		}
	}
	return out.String()
}
