package api

import "notecast/internal/store"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Notebook describes a notebook in a transport-friendly format.
type Notebook struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Source describes an ingested source.
type Source struct {
	ID         string `json:"id"`
	NotebookID string `json:"notebookId"`
	Kind       string `json:"kind"`
	KindLabel  string `json:"kindLabel"`
	Title      string `json:"title"`
	Location   string `json:"location,omitempty"`
	Chars      int    `json:"chars"`
	FullText   string `json:"fullText,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// Note describes a notebook note.
type Note struct {
	ID         string `json:"id"`
	NotebookID string `json:"notebookId"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// Insight describes a transformation result.
type Insight struct {
	ID          string `json:"id"`
	SourceID    string `json:"sourceId"`
	InsightType string `json:"insightType"`
	Content     string `json:"content"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// Transformation describes a catalog transformation.
type Transformation struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Prompt       string `json:"prompt"`
	ApplyDefault bool   `json:"applyDefault"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// Episode describes a generation job.
type Episode struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	NotebookID      string  `json:"notebookId"`
	Template        string  `json:"template"`
	Instructions    string  `json:"instructions,omitempty"`
	Length          string  `json:"length"`
	Status          string  `json:"status"`
	Stage           string  `json:"stage,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	AudioURL        string  `json:"audioUrl,omitempty"`
	FailureReason   string  `json:"failureReason,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	StartedAt       string  `json:"startedAt,omitempty"`
	FinishedAt      string  `json:"finishedAt,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	DatabasePath  string         `json:"databasePath"`
	LockFilePath  string         `json:"lockFilePath"`
	AudioDir      string         `json:"audioDir"`
	EpisodeCounts map[string]int `json:"episodeCounts"`
	Watchers      int            `json:"watchers"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CreateNotebookRequest creates or updates a notebook.
type CreateNotebookRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AddSourceRequest ingests a source. Exactly one of Text, URL, or Path is used,
// selected by Kind (text, website/link, upload).
type AddSourceRequest struct {
	Kind  string `json:"kind"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	URL   string `json:"url,omitempty"`
	Path  string `json:"path,omitempty"`
}

// CreateNoteRequest adds a note.
type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// TransformationRequest creates or updates a transformation.
type TransformationRequest struct {
	Name         string `json:"name"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Prompt       string `json:"prompt"`
	ApplyDefault bool   `json:"applyDefault"`
}

// ApplyTransformationRequest runs a transformation against a source. An empty
// Transformation applies the current default.
type ApplyTransformationRequest struct {
	Transformation string `json:"transformation"`
}

// EpisodeRequest asks for a new episode.
type EpisodeRequest struct {
	Template     string `json:"template"`
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Length       string `json:"length"`
}

// NotebookListResponse wraps notebooks.
type NotebookListResponse struct {
	Notebooks []Notebook `json:"notebooks"`
}

// SourceListResponse wraps sources.
type SourceListResponse struct {
	Sources []Source `json:"sources"`
}

// NoteListResponse wraps notes.
type NoteListResponse struct {
	Notes []Note `json:"notes"`
}

// InsightListResponse wraps insights.
type InsightListResponse struct {
	Insights []Insight `json:"insights"`
}

// TransformationListResponse wraps transformations.
type TransformationListResponse struct {
	Transformations []Transformation `json:"transformations"`
}

// TemplateListResponse wraps episode templates.
type TemplateListResponse struct {
	Templates []store.EpisodeTemplate `json:"templates"`
}

// EpisodeListResponse wraps episodes.
type EpisodeListResponse struct {
	Episodes []Episode `json:"episodes"`
}

// EpisodeResponse wraps a single episode.
type EpisodeResponse struct {
	Episode Episode `json:"episode"`
}

// UnsetDefaultResponse reports whether a default transformation was cleared.
type UnsetDefaultResponse struct {
	Cleared bool `json:"cleared"`
}
