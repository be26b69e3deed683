package podcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"notecast/internal/chunking"
	"notecast/internal/config"
	"notecast/internal/fileutil"
	"notecast/internal/jobs"
	"notecast/internal/logging"
	"notecast/internal/services"
	"notecast/internal/services/llm"
	"notecast/internal/services/tts"
	"notecast/internal/store"
)

// ErrClosed is returned for requests made after Shutdown began.
var ErrClosed = errors.New("episode orchestrator is shutting down")

// CorpusSource reads a notebook's ordered text.
type CorpusSource interface {
	FetchNotebookCorpus(ctx context.Context, notebookID string) ([]store.CorpusEntry, error)
}

// TemplateSource resolves episode templates by name.
type TemplateSource interface {
	GetTemplate(ctx context.Context, name string) (*store.EpisodeTemplate, error)
}

// Dependencies are the collaborators an Orchestrator drives.
type Dependencies struct {
	Corpus    CorpusSource
	Templates TemplateSource
	Registry  *jobs.Registry
	Generator llm.Generator
	Speech    tts.Synthesizer
}

// Request describes an episode generation request.
type Request struct {
	TemplateName string
	NotebookID   string
	EpisodeName  string
	Instructions string
	Length       string
}

// Orchestrator accepts episode requests and runs one pipeline goroutine per
// accepted episode.
type Orchestrator struct {
	cfg      *config.Config
	deps     Dependencies
	selector *chunking.Selector
	logger   *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New builds an orchestrator. Pipelines run under an internal context that
// only Shutdown cancels.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		selector: chunking.NewSelector(cfg.Chunking.UnitChars),
		logger:   logging.NewComponentLogger(logger, "podcast"),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// RequestEpisode validates req, records a pending episode, and starts its
// pipeline. Validation failures create nothing. Pipeline failures are
// recorded on the episode, never returned here.
func (o *Orchestrator) RequestEpisode(ctx context.Context, req Request) (*store.Episode, error) {
	name := strings.TrimSpace(req.EpisodeName)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "podcast", "request episode", "episode name is required", nil)
	}
	length, err := store.ParseLengthCategory(req.Length)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "podcast", "request episode", err.Error(), nil)
	}
	profile, ok := o.cfg.LengthProfile(string(length))
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "podcast", "request episode",
			fmt.Sprintf("no length profile for %s", length), nil)
	}
	if strings.TrimSpace(req.TemplateName) == "" {
		return nil, services.Wrap(services.ErrValidation, "podcast", "request episode", "template name is required", nil)
	}
	tpl, err := o.deps.Templates.GetTemplate(ctx, strings.TrimSpace(req.TemplateName))
	if err != nil {
		return nil, err
	}
	corpus, err := o.deps.Corpus.FetchNotebookCorpus(ctx, req.NotebookID)
	if err != nil {
		return nil, err
	}
	if _, err := o.selector.Select(corpusTexts(corpus), profile.MaxChunks, profile.MinChunkSize); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	o.wg.Add(1)
	o.mu.Unlock()

	ep, err := o.deps.Registry.Create(ctx, store.NewEpisode{
		Name:         name,
		NotebookID:   req.NotebookID,
		Template:     *tpl,
		Instructions: strings.TrimSpace(req.Instructions),
		Length:       length,
	})
	if err != nil {
		o.wg.Done()
		return nil, err
	}

	o.logger.Info("episode accepted",
		logging.String(logging.FieldEpisodeID, ep.ID),
		logging.String(logging.FieldNotebookID, ep.NotebookID),
		logging.String("template", ep.TemplateName),
		logging.String("length", string(ep.Length)),
		logging.String(logging.FieldEventType, "episode_accepted"),
	)
	snapshot := *ep
	go o.run(&snapshot, profile)
	return ep, nil
}

// EpisodeAudio returns the audio file path of a completed episode. Episodes
// that are not completed, or whose file is gone, report ErrNotFound.
func (o *Orchestrator) EpisodeAudio(ctx context.Context, id string) (string, *store.Episode, error) {
	ep, err := o.deps.Registry.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if ep.Status != store.StatusCompleted || ep.AudioRef == "" {
		return "", ep, services.Wrap(services.ErrNotFound, "podcast", "episode audio",
			fmt.Sprintf("episode %s has no audio (status %s)", id, ep.Status), nil)
	}
	if !fileutil.FileExists(ep.AudioRef) {
		return "", ep, services.Wrap(services.ErrNotFound, "podcast", "episode audio",
			fmt.Sprintf("audio file for episode %s is missing", id), nil)
	}
	return ep.AudioRef, ep, nil
}

// Remove deletes a terminal episode and its audio file.
func (o *Orchestrator) Remove(ctx context.Context, id string) (*store.Episode, error) {
	ep, err := o.deps.Registry.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	if ep.AudioRef != "" {
		if err := fileutil.RemoveIfExists(ep.AudioRef); err != nil {
			o.logger.Warn("failed to remove episode audio",
				logging.String(logging.FieldEpisodeID, id),
				logging.Error(err),
			)
		}
	}
	return ep, nil
}

// Wait blocks until every running pipeline has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown stops accepting requests, cancels running pipelines (they fail
// with store.DaemonStopReason), and waits for them until ctx ends.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func corpusTexts(corpus []store.CorpusEntry) []string {
	texts := make([]string, 0, len(corpus))
	for _, entry := range corpus {
		texts = append(texts, entry.Text)
	}
	return texts
}
