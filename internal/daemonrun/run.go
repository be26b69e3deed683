package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"notecast/internal/config"
	"notecast/internal/daemon"
	"notecast/internal/logging"
	"notecast/internal/notifications"
	"notecast/internal/services/llm"
	"notecast/internal/services/tts"
	"notecast/internal/store"
)

const shutdownTimeout = 30 * time.Second

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	LogFormat   string
	Development bool
}

// Run starts the notecast daemon and blocks until ctx ends or the process
// receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logProviderSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "notecast.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	speech, err := tts.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("create speech synthesizer: %w", err)
	}

	d, err := daemon.New(cfg, st, logger, daemon.Dependencies{
		Generator: llm.NewRouterFromConfig(cfg),
		Speech:    speech,
		Notifier:  notifications.NewService(cfg),
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, database access, and that no other daemon is running"),
			logging.String(logging.FieldImpact, "episodes cannot be generated"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("notecast daemon shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	d.Stop(stopCtx)
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if opts.LogLevel == "" && opts.LogFormat == "" && !opts.Development {
		return logging.NewFromConfig(cfg)
	}
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	format := cfg.Logging.Format
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      format,
		Outputs:     []string{"stdout", cfg.LogPath()},
		Development: opts.Development,
	})
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logProviderSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("provider snapshot",
		logging.String(logging.FieldEventType, "provider_snapshot"),
		logging.String("llm_provider", cfg.LLM.Provider),
		logging.String("llm_model", cfg.LLM.Model),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("anthropic_key_present", strings.TrimSpace(cfg.Anthropic.APIKey) != ""),
		logging.Bool("gemini_key_present", strings.TrimSpace(cfg.Gemini.APIKey) != ""),
		logging.String("tts_provider", cfg.TTS.Provider),
		logging.String("tts_model", cfg.TTS.Model),
		logging.Int("tts_concurrency", cfg.TTS.Concurrency),
		logging.String("episode_model", cfg.Episode.DefaultModel),
		logging.Bool("notifications_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}
