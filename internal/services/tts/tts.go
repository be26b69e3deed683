package tts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"notecast/internal/audio"
	"notecast/internal/config"
	"notecast/internal/services"
)

// Segment is one synthesized utterance.
type Segment struct {
	PCM      []byte
	Duration time.Duration
}

// NewSegment wraps PCM bytes, dropping a trailing partial sample, and derives
// their duration.
func NewSegment(pcm []byte) Segment {
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	return Segment{PCM: pcm, Duration: audio.PCMDuration(len(pcm))}
}

// Synthesizer turns text into speech with the named voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (Segment, error)
}

// Limited throttles calls to an underlying Synthesizer.
type Limited struct {
	next    Synthesizer
	limiter *rate.Limiter
}

// NewLimited wraps next with a limiter allowing requestsPerSecond calls with a
// burst of one. requestsPerSecond <= 0 disables throttling.
func NewLimited(next Synthesizer, requestsPerSecond float64) *Limited {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, 1)}
}

// Synthesize waits for a rate token then delegates.
func (l *Limited) Synthesize(ctx context.Context, text, voice string) (Segment, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Segment{}, fmt.Errorf("tts rate limit: %w", err)
	}
	return l.next.Synthesize(ctx, text, voice)
}

// NewFromConfig builds the configured backend wrapped in the rate limiter.
func NewFromConfig(cfg *config.Config) (Synthesizer, error) {
	var backend Synthesizer
	switch cfg.TTS.Provider {
	case "openai":
		backend = NewOpenAIClient(OpenAIConfig{
			APIKey:         cfg.TTS.APIKey,
			BaseURL:        cfg.TTS.BaseURL,
			Model:          cfg.TTS.Model,
			TimeoutSeconds: cfg.TTS.TimeoutSeconds,
		})
	case "gemini":
		backend = NewGeminiClient(GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.TTSModel,
		})
	default:
		return nil, services.Wrap(services.ErrConfiguration, "tts", "init", fmt.Sprintf("unknown provider %q", cfg.TTS.Provider), nil)
	}
	return NewLimited(backend, cfg.TTS.RequestsPerSecond), nil
}

func validateInput(op, text, voice string) error {
	if strings.TrimSpace(text) == "" {
		return services.Wrap(services.ErrValidation, "tts", op, "text required", nil)
	}
	if strings.TrimSpace(voice) == "" {
		return services.Wrap(services.ErrValidation, "tts", op, "voice required", nil)
	}
	return nil
}
