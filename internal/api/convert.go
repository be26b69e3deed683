package api

import (
	"net/url"
	"time"
	"unicode/utf8"

	"notecast/internal/store"
)

// FromNotebook converts a store notebook.
func FromNotebook(nb *store.Notebook) Notebook {
	if nb == nil {
		return Notebook{}
	}
	return Notebook{
		ID:          nb.ID,
		Name:        nb.Name,
		Description: nb.Description,
		CreatedAt:   formatTime(nb.CreatedAt),
		UpdatedAt:   formatTime(nb.UpdatedAt),
	}
}

// FromSource converts a store source. The full text is included only when
// withText is set.
func FromSource(src *store.Source, withText bool) Source {
	if src == nil {
		return Source{}
	}
	out := Source{
		ID:         src.ID,
		NotebookID: src.NotebookID,
		Kind:       string(src.Kind),
		KindLabel:  src.Kind.Label(),
		Title:      src.Title,
		Location:   src.Location,
		Chars:      utf8.RuneCountInString(src.FullText),
		CreatedAt:  formatTime(src.CreatedAt),
	}
	if withText {
		out.FullText = src.FullText
	}
	return out
}

// FromNote converts a store note.
func FromNote(note *store.Note) Note {
	if note == nil {
		return Note{}
	}
	return Note{
		ID:         note.ID,
		NotebookID: note.NotebookID,
		Title:      note.Title,
		Content:    note.Content,
		CreatedAt:  formatTime(note.CreatedAt),
	}
}

// FromInsight converts a store insight.
func FromInsight(in *store.Insight) Insight {
	if in == nil {
		return Insight{}
	}
	return Insight{
		ID:          in.ID,
		SourceID:    in.SourceID,
		InsightType: in.InsightType,
		Content:     in.Content,
		CreatedAt:   formatTime(in.CreatedAt),
	}
}

// FromTransformation converts a store transformation.
func FromTransformation(tr *store.Transformation) Transformation {
	if tr == nil {
		return Transformation{}
	}
	return Transformation{
		ID:           tr.ID,
		Name:         tr.Name,
		Title:        tr.Title,
		Description:  tr.Description,
		Prompt:       tr.Prompt,
		ApplyDefault: tr.ApplyDefault,
		UpdatedAt:    formatTime(tr.UpdatedAt),
	}
}

// FromEpisode converts a store episode. Completed episodes get an audio URL
// relative to the API root; other states never expose one.
func FromEpisode(ep *store.Episode) Episode {
	if ep == nil {
		return Episode{}
	}
	out := Episode{
		ID:           ep.ID,
		Name:         ep.Name,
		NotebookID:   ep.NotebookID,
		Template:     ep.TemplateName,
		Instructions: ep.Instructions,
		Length:       string(ep.Length),
		Status:       string(ep.Status),
		Stage:        ep.ProgressStage,
		CreatedAt:    formatTime(ep.CreatedAt),
		StartedAt:    formatTimePtr(ep.StartedAt),
		FinishedAt:   formatTimePtr(ep.FinishedAt),
	}
	switch ep.Status {
	case store.StatusCompleted:
		out.DurationSeconds = ep.DurationSeconds
		out.AudioURL = EpisodeAudioPath(ep.ID)
	case store.StatusFailed:
		out.FailureReason = ep.FailureReason
	}
	return out
}

// FromEpisodes converts a list of store episodes.
func FromEpisodes(episodes []*store.Episode) []Episode {
	out := make([]Episode, 0, len(episodes))
	for _, ep := range episodes {
		out = append(out, FromEpisode(ep))
	}
	return out
}

// EpisodeAudioPath returns the API path serving an episode's audio.
func EpisodeAudioPath(id string) string {
	return "/api/episodes/" + url.PathEscape(id) + "/audio"
}

// Terminal reports whether the episode status is final.
func (e Episode) Terminal() bool {
	status, err := store.ParseStatus(e.Status)
	return err == nil && status.IsTerminal()
}

// Duration returns the episode duration.
func (e Episode) Duration() time.Duration {
	return time.Duration(e.DurationSeconds * float64(time.Second))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
