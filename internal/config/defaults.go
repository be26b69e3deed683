package config

const (
	defaultDataDir              = "~/.local/share/notecast"
	defaultAudioDir             = "~/.local/share/notecast/audio"
	defaultLogDir               = "~/.local/share/notecast/logs"
	defaultAPIBind              = "127.0.0.1:7593"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLLMProvider          = "openrouter"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-3-flash-preview"
	defaultLLMReferer           = "https://github.com/notecast/notecast"
	defaultLLMTitle             = "Notecast"
	defaultLLMTimeoutSeconds    = 120
	defaultAnthropicModel       = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens   = 8192
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiTTSModel       = "gemini-2.5-flash-preview-tts"
	defaultTTSProvider          = "openai"
	defaultTTSBaseURL           = "https://api.openai.com/v1/audio/speech"
	defaultTTSModel             = "gpt-4o-mini-tts"
	defaultTTSTimeoutSeconds    = 120
	defaultTTSRequestsPerSecond = 2.0
	defaultTTSConcurrency       = 4
	defaultTransformTemperature = 0.3
	defaultChunkUnitChars       = 600
	defaultEpisodeStageTimeout  = 600
	defaultNotifyRequestTimeout = 10
	LengthShort                 = "short"
	LengthMedium                = "medium"
	LengthLong                  = "long"
	maxChunkConstraint          = 10
)

// DefaultLengthProfiles returns the built-in chunk constraints and duration
// bands for each episode length category.
func DefaultLengthProfiles() map[string]LengthProfile {
	return map[string]LengthProfile{
		LengthShort:  {MaxChunks: 3, MinChunkSize: 4, MinMinutes: 5, MaxMinutes: 10},
		LengthMedium: {MaxChunks: 6, MinChunkSize: 6, MinMinutes: 10, MaxMinutes: 20},
		LengthLong:   {MaxChunks: 10, MinChunkSize: 8, MinMinutes: 20, MaxMinutes: 30},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			AudioDir: defaultAudioDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Anthropic: Anthropic{
			Model:     defaultAnthropicModel,
			MaxTokens: defaultAnthropicMaxTokens,
		},
		Gemini: Gemini{
			Model:    defaultGeminiModel,
			TTSModel: defaultGeminiTTSModel,
		},
		TTS: TTS{
			Provider:          defaultTTSProvider,
			BaseURL:           defaultTTSBaseURL,
			Model:             defaultTTSModel,
			TimeoutSeconds:    defaultTTSTimeoutSeconds,
			RequestsPerSecond: defaultTTSRequestsPerSecond,
			Concurrency:       defaultTTSConcurrency,
		},
		Transform: Transform{
			Temperature: defaultTransformTemperature,
		},
		Chunking: Chunking{
			UnitChars: defaultChunkUnitChars,
		},
		Episode: Episode{
			StageTimeoutSeconds: defaultEpisodeStageTimeout,
			Lengths:             DefaultLengthProfiles(),
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Episodes:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
