package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	AudioDir string `toml:"audio_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// LLM contains the OpenRouter-compatible chat completion settings. Provider
// selects which backend serves requests whose model carries no provider prefix.
type LLM struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Anthropic contains Claude connection settings.
type Anthropic struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

// Gemini contains Google Gemini connection settings used for both text and speech.
type Gemini struct {
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	TTSModel string `toml:"tts_model"`
}

// TTS contains speech synthesis settings.
type TTS struct {
	Provider          string  `toml:"provider"`
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Concurrency       int     `toml:"concurrency"`
}

// Transform contains transformation engine settings.
type Transform struct {
	Model         string  `toml:"model"`
	Temperature   float64 `toml:"temperature"`
	MaxInputChars int     `toml:"max_input_chars"`
	ApplyOnIngest bool    `toml:"apply_on_ingest"`
}

// Chunking contains chunk selection settings.
type Chunking struct {
	// UnitChars is the number of characters represented by one unit of
	// min_chunk_size.
	UnitChars int `toml:"unit_chars"`
}

// LengthProfile maps an episode length category to chunk constraints and a
// target duration band.
type LengthProfile struct {
	MaxChunks    int `toml:"max_chunks"`
	MinChunkSize int `toml:"min_chunk_size"`
	MinMinutes   int `toml:"min_minutes"`
	MaxMinutes   int `toml:"max_minutes"`
}

// Episode contains episode generation settings.
type Episode struct {
	StageTimeoutSeconds int                      `toml:"stage_timeout_seconds"`
	DefaultModel        string                   `toml:"default_model"`
	Lengths             map[string]LengthProfile `toml:"lengths"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Episodes       bool   `toml:"episodes"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for notecast.
//
// Configuration sections by subsystem:
//   - Paths: database, audio and log directories plus the API bind address
//   - LLM: OpenRouter chat completions (default text provider)
//   - Anthropic / Gemini: alternative text providers selected by model prefix
//   - TTS: speech synthesis provider, throughput and parallelism
//   - Transform: transformation engine model and input limits
//   - Chunking: chunk size unit
//   - Episode: stage timeout, script model and length profiles
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Anthropic     Anthropic     `toml:"anthropic"`
	Gemini        Gemini        `toml:"gemini"`
	TTS           TTS           `toml:"tts"`
	Transform     Transform     `toml:"transform"`
	Chunking      Chunking      `toml:"chunking"`
	Episode       Episode       `toml:"episode"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// EnvConfigPath names the environment variable consulted when no explicit
// config path is given.
const EnvConfigPath = "NOTECAST_CONFIG"

// DefaultConfigPath returns the per-user configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/notecast/config.toml")
}

// Load reads the configuration at path, or at the first existing candidate
// location when path is empty, then applies defaults, normalization and
// validation. It also reports the resolved path and whether a file was read.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath picks the config file: an explicit path, then
// $NOTECAST_CONFIG, then the per-user file, then ./notecast.toml. When none
// exists the per-user path is returned with exists=false.
func resolveConfigPath(path string) (string, bool, error) {
	explicit := strings.TrimSpace(path)
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if explicit != "" {
		expanded, err := expandPath(explicit)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		if err != nil {
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, exists, nil
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("notecast.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return !info.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.AudioDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "notecast.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "notecastd.lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "notecast.log")
}

func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// ExpandPath resolves "~" and relative segments to an absolute, cleaned path.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the OpenRouter connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// LengthProfile returns the profile for a normalized length category key
// ("short", "medium", "long").
func (c *Config) LengthProfile(key string) (LengthProfile, bool) {
	profile, ok := c.Episode.Lengths[strings.ToLower(strings.TrimSpace(key))]
	return profile, ok
}
