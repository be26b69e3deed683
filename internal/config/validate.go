package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateTransform(); err != nil {
		return err
	}
	if err := c.validateEpisode(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProviders() error {
	if !slices.Contains([]string{"openrouter", "anthropic", "gemini"}, c.LLM.Provider) {
		return fmt.Errorf("llm.provider %q must be one of openrouter, anthropic, gemini", c.LLM.Provider)
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if c.Anthropic.MaxTokens <= 0 {
		return errors.New("anthropic.max_tokens must be positive")
	}
	return nil
}

func (c *Config) validateTTS() error {
	if !slices.Contains([]string{"openai", "gemini"}, c.TTS.Provider) {
		return fmt.Errorf("tts.provider %q must be one of openai, gemini", c.TTS.Provider)
	}
	if c.TTS.RequestsPerSecond < 0 {
		return errors.New("tts.requests_per_second must not be negative")
	}
	if c.TTS.Concurrency <= 0 {
		return errors.New("tts.concurrency must be positive")
	}
	return nil
}

func (c *Config) validateTransform() error {
	if c.Transform.Temperature < 0 || c.Transform.Temperature > 2 {
		return errors.New("transform.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateEpisode() error {
	if c.Chunking.UnitChars <= 0 {
		return errors.New("chunking.unit_chars must be positive")
	}
	keys := make([]string, 0, len(c.Episode.Lengths))
	for key := range c.Episode.Lengths {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch key {
		case LengthShort, LengthMedium, LengthLong:
		default:
			return fmt.Errorf("episode.lengths.%s: unknown length category", key)
		}
		profile := c.Episode.Lengths[key]
		if profile.MaxChunks < 1 || profile.MaxChunks > maxChunkConstraint {
			return fmt.Errorf("episode.lengths.%s.max_chunks must be between 1 and %d", key, maxChunkConstraint)
		}
		if profile.MinChunkSize < 1 || profile.MinChunkSize > maxChunkConstraint {
			return fmt.Errorf("episode.lengths.%s.min_chunk_size must be between 1 and %d", key, maxChunkConstraint)
		}
		if profile.MinMinutes < 0 || profile.MaxMinutes < profile.MinMinutes {
			return fmt.Errorf("episode.lengths.%s: max_minutes must be >= min_minutes >= 0", key)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	topic := strings.TrimSpace(c.Notifications.NtfyTopic)
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return errors.New("notifications.ntfy_topic must be a full http(s) URL")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}
