package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"notecast/internal/catalog"
	"notecast/internal/config"
	"notecast/internal/fileutil"
	"notecast/internal/ingest"
	"notecast/internal/jobs"
	"notecast/internal/logging"
	"notecast/internal/notifications"
	"notecast/internal/podcast"
	"notecast/internal/services/llm"
	"notecast/internal/services/tts"
	"notecast/internal/store"
	"notecast/internal/transform"
)

const notifyTimeout = 15 * time.Second

// Dependencies are the external providers the daemon drives.
type Dependencies struct {
	Generator llm.Generator
	Speech    tts.Synthesizer
	Notifier  notifications.Service
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	registry        *jobs.Registry
	orchestrator    *podcast.Orchestrator
	engine          *transform.Engine
	transformations *catalog.Transformations
	templates       *catalog.Templates
	ingest          *ingest.Service
	notifier        notifications.Service

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running  atomic.Bool
	notifyWG sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	DatabasePath  string
	LockFilePath  string
	AudioDir      string
	EpisodeCounts map[store.Status]int
	Watchers      int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, deps Dependencies) (*Daemon, error) {
	if cfg == nil || st == nil || deps.Generator == nil || deps.Speech == nil {
		return nil, errors.New("daemon requires config, store, generator, and speech synthesizer")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	registry := jobs.NewRegistry(st, logger)
	engine := transform.NewEngine(st, deps.Generator, transform.OptionsFromConfig(cfg), logger)
	ingestOpts := []ingest.Option{ingest.WithLogger(logger)}
	if cfg.Transform.ApplyOnIngest {
		ingestOpts = append(ingestOpts, ingest.WithTransformer(engine))
	}

	d := &Daemon{
		cfg:             cfg,
		logger:          logging.NewComponentLogger(logger, "daemon"),
		store:           st,
		registry:        registry,
		engine:          engine,
		transformations: catalog.NewTransformations(st),
		templates:       catalog.NewTemplates(st),
		ingest:          ingest.New(st, ingestOpts...),
		notifier:        notifier,
		orchestrator: podcast.New(cfg, podcast.Dependencies{
			Corpus:    st,
			Templates: st,
			Registry:  registry,
			Generator: deps.Generator,
			Speech:    deps.Speech,
		}, logger),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	registry.Subscribe(d.notifyEpisode)

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, settles orphaned episodes, seeds the
// default template, and starts the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another notecast daemon instance is already running")
	}

	if err := d.recover(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	if err := d.api.start(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("notecast daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.APIAddress()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) recover(ctx context.Context) error {
	ids, err := d.registry.Recover(ctx, store.DaemonStopReason)
	if err != nil {
		return fmt.Errorf("recover episodes: %w", err)
	}
	if len(ids) > 0 {
		logging.WarnWithContext(d.logger, "interrupted episodes marked failed", "episodes_recovered",
			logging.Int("count", len(ids)),
			logging.String(logging.FieldErrorHint, "request the episodes again"),
			logging.String(logging.FieldImpact, "episodes from the previous run have no audio"),
		)
		d.publish(notifications.EventRecovered, notifications.Payload{"count": len(ids)})
	}
	seeded, err := d.templates.EnsureDefault(ctx)
	if err != nil {
		return fmt.Errorf("seed default template: %w", err)
	}
	if seeded {
		d.logger.Info("seeded default episode template", logging.String("template", catalog.DefaultTemplateName))
	}
	return nil
}

// Stop stops the API, cancels running episodes, and releases the daemon lock.
// Running episodes are failed with store.DaemonStopReason.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Load() {
		return
	}

	d.api.stop(ctx)
	if err := d.orchestrator.Shutdown(ctx); err != nil {
		d.logger.Warn("episode pipelines did not stop in time", logging.Error(err))
	}
	d.notifyWG.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("notecast daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon when running.
func (d *Daemon) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	d.Stop(ctx)
	return nil
}

// APIAddress returns the address the HTTP API listens on, or "" when disabled.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	episodes, err := d.registry.List(ctx, "")
	if err != nil {
		return Status{}, err
	}
	counts := make(map[store.Status]int)
	for _, ep := range episodes {
		counts[ep.Status]++
	}
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		DatabasePath:  d.store.Path(),
		LockFilePath:  d.lockPath,
		AudioDir:      d.cfg.Paths.AudioDir,
		EpisodeCounts: counts,
		Watchers:      d.registry.WatcherCount(),
	}, nil
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// DeleteNotebook removes a notebook and the audio files of its episodes.
func (d *Daemon) DeleteNotebook(ctx context.Context, id string) error {
	refs, err := d.store.DeleteNotebook(ctx, id)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := fileutil.RemoveIfExists(ref); err != nil {
			d.logger.Warn("failed to remove episode audio", logging.String("path", ref), logging.Error(err))
		}
	}
	d.logger.Info("notebook deleted",
		logging.String(logging.FieldNotebookID, id),
		logging.Int("audio_files", len(refs)),
	)
	return nil
}

func (d *Daemon) notifyEpisode(ep store.Episode) {
	event, payload, ok := notifications.EpisodeEvent(ep)
	if !ok {
		return
	}
	d.publish(event, payload)
}

func (d *Daemon) publish(event notifications.Event, payload notifications.Payload) {
	d.notifyWG.Add(1)
	go func() {
		defer d.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := d.notifier.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "push notification was not delivered"),
			)
		}
	}()
}
