package api

import (
	"testing"
	"time"

	"notecast/internal/store"
)

func TestFromEpisodeExposesAudioOnlyWhenCompleted(t *testing.T) {
	created := time.Date(2026, 3, 4, 5, 6, 7, 800_000_000, time.UTC)
	finished := created.Add(7 * time.Minute)
	ep := &store.Episode{
		ID:              "ep-1",
		Name:            "Recap",
		TemplateName:    "deep_dive",
		Length:          store.LengthShort,
		Status:          store.StatusCompleted,
		AudioRef:        "/data/audio/ep-1.wav",
		DurationSeconds: 420,
		CreatedAt:       created,
		FinishedAt:      &finished,
	}
	out := FromEpisode(ep)
	if out.AudioURL != "/api/episodes/ep-1/audio" {
		t.Fatalf("unexpected audio url %q", out.AudioURL)
	}
	if out.CreatedAt != "2026-03-04T05:06:07.800Z" {
		t.Fatalf("unexpected created timestamp %q", out.CreatedAt)
	}
	if out.StartedAt != "" || out.FinishedAt == "" {
		t.Fatalf("unexpected lifecycle timestamps %q %q", out.StartedAt, out.FinishedAt)
	}
	if !out.Terminal() || out.Duration() != 7*time.Minute {
		t.Fatalf("unexpected terminal=%v duration=%s", out.Terminal(), out.Duration())
	}

	ep.Status = store.StatusFailed
	ep.FailureReason = "audio stage failed"
	out = FromEpisode(ep)
	if out.AudioURL != "" || out.DurationSeconds != 0 {
		t.Fatalf("failed episode must not expose audio: %+v", out)
	}
	if out.FailureReason != "audio stage failed" {
		t.Fatalf("unexpected failure reason %q", out.FailureReason)
	}

	ep.Status = store.StatusGenerating
	ep.ProgressStage = "script"
	out = FromEpisode(ep)
	if out.Terminal() || out.FailureReason != "" || out.Stage != "script" {
		t.Fatalf("unexpected generating episode %+v", out)
	}
}

func TestFromSourceOmitsTextByDefault(t *testing.T) {
	src := &store.Source{ID: "s", Kind: store.SourceYouTube, Title: "Talk", FullText: "héllo"}
	out := FromSource(src, false)
	if out.FullText != "" || out.Chars != 5 || out.KindLabel != "YouTube" {
		t.Fatalf("unexpected source %+v", out)
	}
	if FromSource(src, true).FullText != "héllo" {
		t.Fatal("expected full text when requested")
	}
}

func TestNilConversions(t *testing.T) {
	if FromEpisode(nil).ID != "" || FromNotebook(nil).ID != "" || FromTransformation(nil).ID != "" {
		t.Fatal("nil inputs should convert to zero values")
	}
	if got := FromEpisodes(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
