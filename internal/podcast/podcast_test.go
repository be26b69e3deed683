package podcast_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"notecast/internal/audio"
	"notecast/internal/config"
	"notecast/internal/jobs"
	"notecast/internal/logging"
	"notecast/internal/podcast"
	"notecast/internal/services"
	"notecast/internal/services/llm"
	"notecast/internal/store"
	"notecast/internal/testsupport"
)

type harness struct {
	cfg      *config.Config
	st       *store.Store
	registry *jobs.Registry
	gen      *testsupport.FakeGenerator
	speech   *testsupport.FakeSynthesizer
	orch     *podcast.Orchestrator
	notebook *store.Notebook
}

func newHarness(t *testing.T, gen *testsupport.FakeGenerator, speech *testsupport.FakeSynthesizer, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SaveTemplate(t, st, "deep_dive")
	nb := testsupport.NewNotebook(t, st, "Research")
	testsupport.AddTextSource(t, st, nb.ID, "Report", "Revenue grew twelve percent in the third quarter.")
	testsupport.AddTextSource(t, st, nb.ID, "Memo", "Hiring will slow while the new product ships.")

	registry := jobs.NewRegistry(st, logging.NewNop())
	orch := podcast.New(cfg, podcast.Dependencies{
		Corpus:    st,
		Templates: st,
		Registry:  registry,
		Generator: gen,
		Speech:    speech,
	}, logging.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})
	return &harness{cfg: cfg, st: st, registry: registry, gen: gen, speech: speech, orch: orch, notebook: nb}
}

func (h *harness) request(name string) podcast.Request {
	return podcast.Request{
		TemplateName: "deep_dive",
		NotebookID:   h.notebook.ID,
		EpisodeName:  name,
		Instructions: "summarize key points",
		Length:       "Short (5-10 min)",
	}
}

func (h *harness) wait(t *testing.T, id string) *store.Episode {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ep, err := h.registry.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	return ep
}

func scriptJSON(prefix string, turns int) string {
	lines := make([]string, 0, turns)
	for i := 0; i < turns; i++ {
		speaker := "Person1"
		if i%2 == 1 {
			speaker = "Person2"
		}
		lines = append(lines, fmt.Sprintf(`{"speaker":%q,"dialogue":"%s line %d"}`, speaker, prefix, i+1))
	}
	return `{"transcript":[` + strings.Join(lines, ",") + `]}`
}

func TestRequestEpisodeCompletes(t *testing.T) {
	h := newHarness(t,
		&testsupport.FakeGenerator{Responses: []string{scriptJSON("a", 6)}},
		&testsupport.FakeSynthesizer{},
	)
	ctx := context.Background()

	ep, err := h.orch.RequestEpisode(ctx, h.request("Quarterly recap"))
	if err != nil {
		t.Fatalf("RequestEpisode failed: %v", err)
	}
	if ep.Status != store.StatusPending {
		t.Fatalf("expected pending episode, got %s", ep.Status)
	}

	done := h.wait(t, ep.ID)
	if done.Status != store.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", done.Status, done.FailureReason)
	}
	if got := done.Duration(); got != 7*time.Minute {
		t.Fatalf("duration = %s, want 7m", got)
	}
	if done.Duration() < 5*time.Minute || done.Duration() > 10*time.Minute {
		t.Fatalf("duration %s outside short band", done.Duration())
	}
	if done.FailureReason != "" {
		t.Fatalf("unexpected failure reason %q", done.FailureReason)
	}

	path, _, err := h.orch.EpisodeAudio(ctx, ep.ID)
	if err != nil {
		t.Fatalf("EpisodeAudio failed: %v", err)
	}
	if path != done.AudioRef {
		t.Fatalf("audio path %q differs from audio ref %q", path, done.AudioRef)
	}

	calls := h.speech.Calls()
	if len(calls) != 7 {
		t.Fatalf("expected 7 speech calls, got %d", len(calls))
	}
	voices := map[string]string{}
	for _, call := range calls {
		voices[call.Text] = call.Voice
	}
	if voices["a line 1"] != "alloy" || voices["a line 2"] != "nova" {
		t.Fatalf("unexpected persona voices: %v", voices)
	}
	if voices["Thanks for listening."] != "alloy" {
		t.Fatalf("ending message should use the first voice, got %q", voices["Thanks for listening."])
	}

	gen := h.gen.Calls()
	if len(gen) != 1 {
		t.Fatalf("expected one script generation, got %d", len(gen))
	}
	if !gen[0].JSON || gen[0].Temperature != 0.4 {
		t.Fatalf("unexpected generation request %+v", gen[0])
	}
	if !strings.Contains(gen[0].User, "summarize key points") || !strings.Contains(gen[0].User, "Revenue grew") {
		t.Fatalf("user prompt missing instructions or corpus: %q", gen[0].User)
	}
}

func TestRequestEpisodeWritesTurnsInOrder(t *testing.T) {
	h := newHarness(t,
		&testsupport.FakeGenerator{Responses: []string{scriptJSON("ordered", 4)}},
		&testsupport.FakeSynthesizer{Delay: 5 * time.Millisecond},
		testsupport.WithTTSConcurrency(4),
	)
	ep, err := h.orch.RequestEpisode(context.Background(), h.request("Ordered"))
	if err != nil {
		t.Fatalf("RequestEpisode failed: %v", err)
	}
	done := h.wait(t, ep.ID)
	if done.Status != store.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", done.Status, done.FailureReason)
	}

	data, err := os.ReadFile(done.AudioRef)
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	want := padded("ordered line 1") + padded("ordered line 2") + padded("ordered line 3") +
		padded("ordered line 4") + padded("Thanks for listening.")
	if got := string(audio.StripWAVHeader(data)); got != want {
		t.Fatalf("audio payload = %q, want %q", got, want)
	}
}

func padded(text string) string {
	if len(text)%2 != 0 {
		return text + " "
	}
	return text
}

func TestRequestEpisodeValidation(t *testing.T) {
	h := newHarness(t, &testsupport.FakeGenerator{Responses: []string{scriptJSON("v", 2)}}, &testsupport.FakeSynthesizer{})
	ctx := context.Background()
	empty := testsupport.NewNotebook(t, h.st, "Empty")

	tests := []struct {
		name   string
		mutate func(*podcast.Request)
		marker error
	}{
		{"blank name", func(r *podcast.Request) { r.EpisodeName = "  " }, services.ErrValidation},
		{"bad length", func(r *podcast.Request) { r.Length = "Epic" }, services.ErrValidation},
		{"blank template", func(r *podcast.Request) { r.TemplateName = " " }, services.ErrValidation},
		{"missing template", func(r *podcast.Request) { r.TemplateName = "nope" }, services.ErrNotFound},
		{"missing notebook", func(r *podcast.Request) { r.NotebookID = "missing" }, services.ErrNotFound},
		{"empty corpus", func(r *podcast.Request) { r.NotebookID = empty.ID }, services.ErrChunking},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := h.request("Episode")
			tc.mutate(&req)
			if _, err := h.orch.RequestEpisode(ctx, req); !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}

	episodes, err := h.registry.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(episodes) != 0 {
		t.Fatalf("validation failures must not create episodes, found %d", len(episodes))
	}
	if len(h.gen.Calls()) != 0 {
		t.Fatal("validation failures must not reach the generator")
	}
}

func TestSpeechFailureFailsEpisode(t *testing.T) {
	h := newHarness(t,
		&testsupport.FakeGenerator{Responses: []string{scriptJSON("c", 4)}},
		&testsupport.FakeSynthesizer{FailOn: func(text, _ string) error {
			if text == "c line 3" {
				return errors.New("voice service unavailable")
			}
			return nil
		}},
	)
	ctx := context.Background()
	ep, err := h.orch.RequestEpisode(ctx, h.request("Broken"))
	if err != nil {
		t.Fatalf("RequestEpisode failed: %v", err)
	}
	done := h.wait(t, ep.ID)
	if done.Status != store.StatusFailed {
		t.Fatalf("expected failed, got %s", done.Status)
	}
	if done.AudioRef != "" {
		t.Fatalf("failed episode exposes audio %q", done.AudioRef)
	}
	if !strings.Contains(done.FailureReason, "voice service unavailable") {
		t.Fatalf("unexpected failure reason %q", done.FailureReason)
	}
	if done.ProgressStage != podcast.StageAudio {
		t.Fatalf("expected failure in audio stage, got %q", done.ProgressStage)
	}
	if _, _, err := h.orch.EpisodeAudio(ctx, ep.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for failed episode audio, got %v", err)
	}
	entries, err := os.ReadDir(h.cfg.Paths.AudioDir)
	if err != nil {
		t.Fatalf("read audio dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no audio artifacts, found %d", len(entries))
	}
}

func TestScriptFailureFailsEpisode(t *testing.T) {
	tests := []struct {
		name string
		gen  *testsupport.FakeGenerator
		want string
	}{
		{"provider error", &testsupport.FakeGenerator{Err: errors.New("upstream 500")}, "upstream 500"},
		{"unusable script", &testsupport.FakeGenerator{Responses: []string{"I cannot help with that."}}, "no dialogue turns"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.gen, &testsupport.FakeSynthesizer{})
			ep, err := h.orch.RequestEpisode(context.Background(), h.request("Script"))
			if err != nil {
				t.Fatalf("RequestEpisode failed: %v", err)
			}
			done := h.wait(t, ep.ID)
			if done.Status != store.StatusFailed {
				t.Fatalf("expected failed, got %s", done.Status)
			}
			if !strings.Contains(done.FailureReason, tc.want) {
				t.Fatalf("failure reason %q does not mention %q", done.FailureReason, tc.want)
			}
			if len(h.speech.Calls()) != 0 {
				t.Fatal("speech must not run after a script failure")
			}
		})
	}
}

func TestConcurrentEpisodesAreIsolated(t *testing.T) {
	gen := &testsupport.FakeGenerator{Respond: func(req llm.Request) (string, error) {
		for _, name := range []string{"alpha", "beta", "gamma"} {
			if strings.Contains(req.System, `"`+name+`"`) {
				return scriptJSON(name, 3), nil
			}
		}
		return "", errors.New("unknown episode")
	}}
	h := newHarness(t, gen, &testsupport.FakeSynthesizer{Delay: 2 * time.Millisecond}, testsupport.WithTTSConcurrency(2))
	ctx := context.Background()

	names := []string{"alpha", "beta", "gamma"}
	ids := make([]string, len(names))
	var wg sync.WaitGroup
	errs := make(chan error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ep, err := h.orch.RequestEpisode(ctx, h.request(name))
			if err != nil {
				errs <- err
				return
			}
			ids[i] = ep.ID
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("RequestEpisode failed: %v", err)
	}

	for i, id := range ids {
		done := h.wait(t, id)
		if done.Status != store.StatusCompleted {
			t.Fatalf("%s: expected completed, got %s (%s)", names[i], done.Status, done.FailureReason)
		}
		data, err := os.ReadFile(done.AudioRef)
		if err != nil {
			t.Fatalf("read audio: %v", err)
		}
		payload := string(audio.StripWAVHeader(data))
		for _, other := range names {
			if other == names[i] {
				continue
			}
			if strings.Contains(payload, other+" line") {
				t.Fatalf("%s audio contains %s dialogue", names[i], other)
			}
		}
		if !strings.HasPrefix(payload, names[i]+" line 1") {
			t.Fatalf("%s audio starts with %q", names[i], payload)
		}
	}
}

func TestSpeechConcurrencyIsBounded(t *testing.T) {
	speech := &testsupport.FakeSynthesizer{Delay: 10 * time.Millisecond}
	h := newHarness(t,
		&testsupport.FakeGenerator{Responses: []string{scriptJSON("bounded", 8)}},
		speech,
		testsupport.WithTTSConcurrency(2),
	)
	ep, err := h.orch.RequestEpisode(context.Background(), h.request("Bounded"))
	if err != nil {
		t.Fatalf("RequestEpisode failed: %v", err)
	}
	if done := h.wait(t, ep.ID); done.Status != store.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", done.Status, done.FailureReason)
	}
	if got := speech.MaxConcurrent(); got > 2 {
		t.Fatalf("observed %d concurrent speech calls, limit is 2", got)
	}
}

func TestShutdownFailsRunningEpisodes(t *testing.T) {
	speech := &testsupport.FakeSynthesizer{Delay: time.Minute}
	h := newHarness(t, &testsupport.FakeGenerator{Responses: []string{scriptJSON("slow", 2)}}, speech)
	ctx := context.Background()

	ep, err := h.orch.RequestEpisode(ctx, h.request("Slow"))
	if err != nil {
		t.Fatalf("RequestEpisode failed: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(speech.Calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("speech stage never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.orch.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	done, err := h.registry.Get(ctx, ep.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if done.Status != store.StatusFailed || done.FailureReason != store.DaemonStopReason {
		t.Fatalf("expected failed with %q, got %s %q", store.DaemonStopReason, done.Status, done.FailureReason)
	}
	if _, err := h.orch.RequestEpisode(ctx, h.request("Late")); !errors.Is(err, podcast.ErrClosed) {
		t.Fatalf("expected ErrClosed after shutdown, got %v", err)
	}
}

func TestStageTimeoutFailsEpisode(t *testing.T) {
	h := newHarness(t,
		&testsupport.FakeGenerator{Responses: []string{scriptJSON("hung", 2)}},
		&testsupport.FakeSynthesizer{Delay: time.Minute},
		testsupport.WithStageTimeout(1),
	)
	ep, err := h.orch.RequestEpisode(context.Background(), h.request("Hung"))
	if err != nil {
		t.Fatalf("RequestEpisode failed: %v", err)
	}
	done := h.wait(t, ep.ID)
	if done.Status != store.StatusFailed {
		t.Fatalf("expected failed, got %s", done.Status)
	}
	if !strings.Contains(done.FailureReason, "timeout") {
		t.Fatalf("expected timeout reason, got %q", done.FailureReason)
	}
	if done.FailureReason == store.DaemonStopReason {
		t.Fatal("stage timeout must not be reported as a daemon stop")
	}
}

func TestRemoveDeletesAudio(t *testing.T) {
	h := newHarness(t, &testsupport.FakeGenerator{Responses: []string{scriptJSON("r", 2)}}, &testsupport.FakeSynthesizer{})
	ctx := context.Background()
	ep, err := h.orch.RequestEpisode(ctx, h.request("Removable"))
	if err != nil {
		t.Fatalf("RequestEpisode failed: %v", err)
	}
	done := h.wait(t, ep.ID)
	if done.Status != store.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if _, err := h.orch.Remove(ctx, ep.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(done.AudioRef); !os.IsNotExist(err) {
		t.Fatalf("expected audio removed, stat err = %v", err)
	}
	if _, err := h.registry.Get(ctx, ep.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected removed episode to be not found, got %v", err)
	}
}
