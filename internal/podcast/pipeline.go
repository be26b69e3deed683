package podcast

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"notecast/internal/audio"
	"notecast/internal/config"
	"notecast/internal/fileutil"
	"notecast/internal/logging"
	"notecast/internal/services"
	"notecast/internal/services/llm"
	"notecast/internal/services/tts"
	"notecast/internal/store"
)

// Pipeline stages recorded as the episode's progress.
const (
	StageCorpus   = "corpus"
	StageChunks   = "chunks"
	StageScript   = "script"
	StageAudio    = "audio"
	StageAssemble = "assemble"
)

func (o *Orchestrator) run(ep *store.Episode, profile config.LengthProfile) {
	defer o.wg.Done()

	ctx := services.WithEpisodeID(o.baseCtx, ep.ID)
	logger := logging.WithContext(ctx, o.logger)
	started := time.Now()

	if _, err := o.deps.Registry.Start(ctx, ep.ID, StageCorpus); err != nil {
		o.fail(ctx, ep.ID, StageCorpus, err)
		return
	}
	logger.Info("episode generation started", logging.String(logging.FieldEventType, "episode_started"))

	path, seconds, err := o.generate(ctx, ep, profile)
	if err != nil {
		o.fail(ctx, ep.ID, "", err)
		return
	}

	if _, err := o.deps.Registry.Complete(context.WithoutCancel(ctx), ep.ID, path, seconds); err != nil {
		_ = fileutil.RemoveIfExists(path)
		o.fail(ctx, ep.ID, StageAssemble, err)
		return
	}

	attrs := []logging.Attr{
		logging.Float64("duration_seconds", seconds),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "episode_completed"),
	}
	logger.Info("episode completed", logging.Args(attrs...)...)

	minutes := seconds / 60
	if minutes < float64(profile.MinMinutes) || minutes > float64(profile.MaxMinutes) {
		logging.WarnWithContext(logger, "episode duration outside length band", "episode_duration_band",
			logging.Float64("duration_minutes", minutes),
			logging.Int("band_min_minutes", profile.MinMinutes),
			logging.Int("band_max_minutes", profile.MaxMinutes),
			logging.String("length", string(ep.Length)),
			logging.String(logging.FieldErrorHint, "adjust the length profile or template instructions"),
			logging.String(logging.FieldImpact, "episode is shorter or longer than requested"),
		)
	}
}

// stageError records the stage an error came from.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

func (o *Orchestrator) generate(ctx context.Context, ep *store.Episode, profile config.LengthProfile) (string, float64, error) {
	var corpus []store.CorpusEntry
	if err := o.stage(ctx, ep.ID, StageCorpus, func(ctx context.Context) error {
		var err error
		corpus, err = o.deps.Corpus.FetchNotebookCorpus(ctx, ep.NotebookID)
		return err
	}); err != nil {
		return "", 0, err
	}

	var chunks []string
	if err := o.stage(ctx, ep.ID, StageChunks, func(context.Context) error {
		var err error
		chunks, err = o.selector.Select(corpusTexts(corpus), profile.MaxChunks, profile.MinChunkSize)
		return err
	}); err != nil {
		return "", 0, err
	}

	var turns []Turn
	if err := o.stage(ctx, ep.ID, StageScript, func(ctx context.Context) error {
		var err error
		turns, err = o.writeScript(ctx, ep, profile, chunks)
		return err
	}); err != nil {
		return "", 0, err
	}

	var segments []tts.Segment
	if err := o.stage(ctx, ep.ID, StageAudio, func(ctx context.Context) error {
		var err error
		segments, err = o.synthesize(ctx, ep.Template, turns)
		return err
	}); err != nil {
		return "", 0, err
	}

	var path string
	var total time.Duration
	if err := o.stage(ctx, ep.ID, StageAssemble, func(context.Context) error {
		var err error
		path, total, err = o.assemble(ep.ID, segments)
		return err
	}); err != nil {
		return "", 0, err
	}
	return path, total.Seconds(), nil
}

// stage records progress and runs fn under the per-stage timeout.
func (o *Orchestrator) stage(ctx context.Context, id, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &stageError{stage: name, err: err}
	}
	if name != StageCorpus {
		if _, err := o.deps.Registry.Progress(ctx, id, name); err != nil {
			return &stageError{stage: name, err: err}
		}
	}
	stageCtx := services.WithStage(ctx, name)
	if timeout := o.cfg.Episode.StageTimeoutSeconds; timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	logging.WithContext(stageCtx, o.logger).Debug("stage started")
	if err := fn(stageCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, services.ErrTimeout) {
			err = services.Wrap(services.ErrTimeout, "podcast", name,
				fmt.Sprintf("stage exceeded %ds", o.cfg.Episode.StageTimeoutSeconds), err)
		}
		return &stageError{stage: name, err: err}
	}
	return nil
}

func (o *Orchestrator) writeScript(ctx context.Context, ep *store.Episode, profile config.LengthProfile, chunks []string) ([]Turn, error) {
	system, user, err := buildPrompts(ep, profile, chunks)
	if err != nil {
		return nil, err
	}
	model := ep.Template.Model
	if model == "" {
		model = o.cfg.Episode.DefaultModel
	}
	raw, err := o.deps.Generator.Generate(ctx, llm.Request{
		Model:       model,
		System:      system,
		User:        user,
		Temperature: ep.Template.Creativity,
		JSON:        true,
	})
	if err != nil {
		return nil, classifyProviderError("generate script", err)
	}
	turns, err := ParseScript(raw)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, o.logger).Info("script generated",
		logging.Int("turns", len(turns)),
		logging.String("model", model),
	)
	return turns, nil
}

type speechLine struct {
	text  string
	voice string
}

// synthesize renders every turn plus the ending message, keeping turn order.
func (o *Orchestrator) synthesize(ctx context.Context, tpl store.EpisodeTemplate, turns []Turn) ([]tts.Segment, error) {
	lines := make([]speechLine, 0, len(turns)+1)
	for _, turn := range turns {
		lines = append(lines, speechLine{text: turn.Text, voice: turn.Persona.Voice(tpl)})
	}
	if ending := cleanDialogue(tpl.EndingMessage); ending != "" {
		lines = append(lines, speechLine{text: ending, voice: Persona1.Voice(tpl)})
	}

	segments := make([]tts.Segment, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	limit := o.cfg.TTS.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, line := range lines {
		g.Go(func() error {
			seg, err := o.deps.Speech.Synthesize(gctx, line.text, line.voice)
			if err != nil {
				return classifyProviderError(fmt.Sprintf("synthesize turn %d", i+1), err)
			}
			segments[i] = seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return segments, nil
}

// assemble writes the episode WAV atomically and returns the summed segment
// duration.
func (o *Orchestrator) assemble(id string, segments []tts.Segment) (string, time.Duration, error) {
	pcm := make([][]byte, 0, len(segments))
	var total time.Duration
	for _, seg := range segments {
		pcm = append(pcm, seg.PCM)
		total += seg.Duration
	}
	path := filepath.Join(o.cfg.Paths.AudioDir, id+".wav")
	if _, err := audio.WriteFile(path, pcm...); err != nil {
		return "", 0, services.Wrap(services.ErrConfiguration, "podcast", "assemble", "write episode audio", err)
	}
	return path, total, nil
}

func (o *Orchestrator) fail(ctx context.Context, id, stage string, err error) {
	var se *stageError
	if errors.As(err, &se) {
		stage = se.stage
	}
	reason := failureReason(ctx, stage, err)
	logger := logging.WithContext(ctx, o.logger)
	logging.ErrorWithContext(logger, "episode generation failed", "episode_failed",
		logging.String(logging.FieldStage, stage),
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, services.Code(err)),
		logging.Error(err),
	)
	if _, ferr := o.deps.Registry.Fail(context.WithoutCancel(ctx), id, reason); ferr != nil {
		logger.Error("failed to record episode failure", logging.Error(ferr))
	}
}

func failureReason(ctx context.Context, stage string, err error) string {
	if ctx.Err() != nil {
		return store.DaemonStopReason
	}
	var se *stageError
	if errors.As(err, &se) {
		err = se.err
	}
	if stage == "" {
		return err.Error()
	}
	return fmt.Sprintf("%s stage failed: %v", stage, err)
}

func classifyProviderError(op string, err error) error {
	switch {
	case errors.Is(err, services.ErrConfiguration),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrProvider),
		errors.Is(err, services.ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "podcast", op, "provider call timed out", err)
	case errors.Is(err, context.Canceled):
		return err
	}
	return services.Wrap(services.ErrProvider, "podcast", op, "provider call failed", err)
}
