package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"notecast/internal/audio"
	"notecast/internal/services"
)

// GeminiConfig captures Gemini speech settings.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiClient synthesizes speech with Gemini's prebuilt voices.
type GeminiClient struct {
	cfg GeminiConfig

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiClient constructs a Gemini speech client.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	return &GeminiClient{cfg: cfg}
}

func (c *GeminiClient) ensureClient(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		clientCfg := &genai.ClientConfig{APIKey: c.cfg.APIKey, Backend: genai.BackendGeminiAPI}
		if base := strings.TrimSpace(c.cfg.BaseURL); base != "" {
			clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
		}
		c.client, c.initErr = genai.NewClient(ctx, clientCfg)
	})
	if c.initErr != nil {
		return nil, fmt.Errorf("gemini speech client: %w", c.initErr)
	}
	return c.client, nil
}

// Synthesize requests audio output for text using the prebuilt voice name.
func (c *GeminiClient) Synthesize(ctx context.Context, text, voice string) (Segment, error) {
	if err := validateInput("gemini synthesize", text, voice); err != nil {
		return Segment{}, err
	}
	if c.cfg.APIKey == "" {
		return Segment{}, services.Wrap(services.ErrConfiguration, "tts", "gemini", "api key required (gemini.api_key or GEMINI_API_KEY)", nil)
	}
	client, err := c.ensureClient(ctx)
	if err != nil {
		return Segment{}, err
	}
	genCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: strings.TrimSpace(voice)},
			},
		},
	}
	contents := []*genai.Content{genai.NewContentFromText(strings.TrimSpace(text), genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, c.cfg.Model, contents, genCfg)
	if err != nil {
		return Segment{}, fmt.Errorf("gemini speech: %w", err)
	}
	pcm := inlineAudio(resp)
	if len(pcm) == 0 {
		return Segment{}, errors.New("gemini speech: empty audio")
	}
	return NewSegment(audio.StripWAVHeader(pcm)), nil
}

func inlineAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	var out []byte
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil {
				out = append(out, part.InlineData.Data...)
			}
		}
		if len(out) > 0 {
			break
		}
	}
	return out
}
