package store

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies how a source entered its notebook.
type SourceKind string

const (
	SourceLink    SourceKind = "link"
	SourceUpload  SourceKind = "upload"
	SourceText    SourceKind = "text"
	SourcePDF     SourceKind = "pdf"
	SourceYouTube SourceKind = "youtube"
	SourceWebsite SourceKind = "website"
)

// ParseSourceKind maps a user-supplied kind onto the closed SourceKind set.
func ParseSourceKind(value string) (SourceKind, error) {
	switch kind := SourceKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case SourceLink, SourceUpload, SourceText, SourcePDF, SourceYouTube, SourceWebsite:
		return kind, nil
	}
	return "", fmt.Errorf("unknown source kind %q", value)
}

// Label returns a human readable name for the kind.
func (k SourceKind) Label() string {
	switch k {
	case SourceLink:
		return "Link"
	case SourceUpload:
		return "Upload"
	case SourceText:
		return "Text"
	case SourcePDF:
		return "PDF"
	case SourceYouTube:
		return "YouTube"
	case SourceWebsite:
		return "Website"
	}
	return string(k)
}

// Status represents the lifecycle of an episode.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DaemonStopReason is the failure reason recorded for episodes interrupted by
// daemon shutdown or left active by a previous process.
const DaemonStopReason = "Daemon stopped"

// ParseStatus validates a persisted or user-supplied status.
func ParseStatus(value string) (Status, error) {
	switch status := Status(strings.ToLower(strings.TrimSpace(value))); status {
	case StatusPending, StatusGenerating, StatusCompleted, StatusFailed:
		return status, nil
	}
	return "", fmt.Errorf("unknown episode status %q", value)
}

// IsTerminal reports whether no transition may leave the status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	case StatusPending, StatusGenerating:
		return false
	}
	return false
}

// LengthCategory selects the target duration band of an episode.
type LengthCategory string

const (
	LengthShort  LengthCategory = "short"
	LengthMedium LengthCategory = "medium"
	LengthLong   LengthCategory = "long"
)

// ParseLengthCategory accepts a bare key ("short") or a display label such as
// "Short (5-10 min)"; only the leading word is significant.
func ParseLengthCategory(value string) (LengthCategory, error) {
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return r == ' ' || r == '(' || r == '\t'
	})
	if len(fields) == 0 {
		return "", fmt.Errorf("length category is required")
	}
	switch category := LengthCategory(fields[0]); category {
	case LengthShort, LengthMedium, LengthLong:
		return category, nil
	}
	return "", fmt.Errorf("unknown length category %q", value)
}

// Notebook groups sources, notes, and episodes.
type Notebook struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Source is one ingested content item.
type Source struct {
	ID         string
	NotebookID string
	Kind       SourceKind
	Title      string
	Location   string
	RawContent string
	FullText   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Note is a human or AI authored note attached to a notebook.
type Note struct {
	ID         string
	NotebookID string
	Title      string
	Content    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Insight is a generated annotation on a source. Rows are append-only.
type Insight struct {
	ID          string
	SourceID    string
	InsightType string
	Content     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transformation is a named prompt template applied to sources.
type Transformation struct {
	ID           string
	Name         string
	Title        string
	Description  string
	Prompt       string
	ApplyDefault bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EpisodeTemplate configures the voices, personas, and style of an episode.
// Episodes carry a JSON snapshot taken at request time.
type EpisodeTemplate struct {
	Name                 string   `json:"name" toml:"name" validate:"required,max=100"`
	PodcastName          string   `json:"podcast_name" toml:"podcast_name" validate:"required"`
	Tagline              string   `json:"tagline" toml:"tagline"`
	Language             string   `json:"language" toml:"language"`
	Person1Roles         []string `json:"person1_roles" toml:"person1_roles" validate:"min=1,dive,required"`
	Person2Roles         []string `json:"person2_roles" toml:"person2_roles" validate:"min=1,dive,required"`
	ConversationStyle    []string `json:"conversation_style" toml:"conversation_style" validate:"dive,required"`
	EngagementTechniques []string `json:"engagement_techniques" toml:"engagement_techniques" validate:"dive,required"`
	DialogueStructure    []string `json:"dialogue_structure" toml:"dialogue_structure" validate:"dive,required"`
	Creativity           float64  `json:"creativity" toml:"creativity" validate:"gte=0,lte=1"`
	Voice1               string   `json:"voice1" toml:"voice1" validate:"required"`
	Voice2               string   `json:"voice2" toml:"voice2" validate:"required"`
	EndingMessage        string   `json:"ending_message" toml:"ending_message"`
	Model                string   `json:"model" toml:"model"`

	CreatedAt time.Time `json:"-" toml:"-"`
	UpdatedAt time.Time `json:"-" toml:"-"`
}

// Episode is one podcast generation request and its outcome.
type Episode struct {
	ID              string
	Name            string
	NotebookID      string
	TemplateName    string
	Template        EpisodeTemplate
	Instructions    string
	Length          LengthCategory
	Status          Status
	ProgressStage   string
	AudioRef        string
	DurationSeconds float64
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Duration returns the computed audio duration.
func (e *Episode) Duration() time.Duration {
	if e == nil {
		return 0
	}
	return time.Duration(e.DurationSeconds * float64(time.Second))
}

// CorpusKind marks whether a corpus entry came from a source or a note.
type CorpusKind string

const (
	CorpusSource CorpusKind = "source"
	CorpusNote   CorpusKind = "note"
)

// CorpusEntry is one ordered block of notebook text.
type CorpusEntry struct {
	Kind      CorpusKind
	ID        string
	Title     string
	Text      string
	CreatedAt time.Time
}
