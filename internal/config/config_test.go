package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"notecast/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeysAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "router-key")
	t.Setenv("OPENAI_API_KEY", "speech-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvConfigPath, "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "notecast")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7593" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.LLM.APIKey != "router-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.TTS.APIKey != "speech-key" {
		t.Fatalf("expected TTS key from env, got %q", cfg.TTS.APIKey)
	}
	if cfg.Chunking.UnitChars != 600 {
		t.Fatalf("unexpected chunk unit: %d", cfg.Chunking.UnitChars)
	}
	if cfg.Episode.StageTimeoutSeconds != 600 {
		t.Fatalf("unexpected stage timeout: %d", cfg.Episode.StageTimeoutSeconds)
	}
	for _, key := range []string{"short", "medium", "long"} {
		if _, ok := cfg.LengthProfile(key); !ok {
			t.Fatalf("expected default length profile %q", key)
		}
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.AudioDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadFollowsEnvironmentPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "from-env.toml")
	body := "[paths]\ndata_dir = \"" + filepath.ToSlash(filepath.Join(dir, "data")) + "\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(config.EnvConfigPath, " "+path+" ")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != path || !exists {
		t.Fatalf("expected %s to be loaded, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}

	explicit := filepath.Join(dir, "missing.toml")
	_, resolved, exists, err = config.Load(explicit)
	if err != nil {
		t.Fatalf("Load explicit returned error: %v", err)
	}
	if resolved != explicit || exists {
		t.Fatalf("expected explicit path to win, got %q exists=%v", resolved, exists)
	}
}

func TestExpandPathHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := config.ExpandPath("~/notes/../audio")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if got != filepath.Join(home, "audio") {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestLoadCustomPathMergesLengthProfiles(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "notecast.toml")

	type profile struct {
		MaxChunks int `toml:"max_chunks"`
	}
	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		TTS struct {
			Provider    string `toml:"provider"`
			Concurrency int    `toml:"concurrency"`
		} `toml:"tts"`
		Episode struct {
			Lengths map[string]profile `toml:"lengths"`
		} `toml:"episode"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.TTS.Provider = "Gemini"
	custom.TTS.Concurrency = 2
	custom.Episode.Lengths = map[string]profile{"short": {MaxChunks: 2}}
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempDir, "data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.TTS.Provider != "gemini" || cfg.TTS.Concurrency != 2 {
		t.Fatalf("unexpected tts settings: %+v", cfg.TTS)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
	short, ok := cfg.LengthProfile("short")
	if !ok {
		t.Fatal("expected short profile")
	}
	if short.MaxChunks != 2 || short.MinChunkSize != 4 || short.MinMinutes != 5 || short.MaxMinutes != 10 {
		t.Fatalf("unexpected merged short profile: %+v", short)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"llm provider", func(c *config.Config) { c.LLM.Provider = "cohere" }, "llm.provider"},
		{"tts provider", func(c *config.Config) { c.TTS.Provider = "espeak" }, "tts.provider"},
		{"concurrency", func(c *config.Config) { c.TTS.Concurrency = 0 }, "tts.concurrency"},
		{"max chunks", func(c *config.Config) {
			c.Episode.Lengths["short"] = config.LengthProfile{MaxChunks: 11, MinChunkSize: 1, MinMinutes: 1, MaxMinutes: 2}
		}, "max_chunks"},
		{"min chunk", func(c *config.Config) {
			c.Episode.Lengths["long"] = config.LengthProfile{MaxChunks: 1, MinChunkSize: 0, MinMinutes: 1, MaxMinutes: 2}
		}, "min_chunk_size"},
		{"unknown length", func(c *config.Config) {
			c.Episode.Lengths["epic"] = config.LengthProfile{MaxChunks: 1, MinChunkSize: 1}
		}, "unknown length"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "my-topic" }, "ntfy_topic"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	path := filepath.Join(tempDir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.TTS.Concurrency != 4 {
		t.Fatalf("unexpected sample concurrency: %d", cfg.TTS.Concurrency)
	}
}
