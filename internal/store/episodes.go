package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"notecast/internal/services"
)

const episodeColumns = "id, name, notebook_id, template_name, template_json, instructions, length, status, progress_stage, audio_ref, duration_seconds, failure_reason, created_at, updated_at, started_at, finished_at"

func scanEpisode(scanner rowScanner) (*Episode, error) {
	var (
		ep            Episode
		templateJSON  string
		instructions  sql.NullString
		length        string
		statusStr     string
		progressStage sql.NullString
		audioRef      sql.NullString
		duration      sql.NullFloat64
		failure       sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		startedRaw    sql.NullString
		finishedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&ep.ID,
		&ep.Name,
		&ep.NotebookID,
		&ep.TemplateName,
		&templateJSON,
		&instructions,
		&length,
		&statusStr,
		&progressStage,
		&audioRef,
		&duration,
		&failure,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(templateJSON), &ep.Template); err != nil {
		return nil, fmt.Errorf("decode template snapshot for episode %s: %w", ep.ID, err)
	}
	ep.Instructions = instructions.String
	ep.Length = LengthCategory(length)
	ep.Status = Status(statusStr)
	ep.ProgressStage = progressStage.String
	ep.AudioRef = audioRef.String
	ep.DurationSeconds = duration.Float64
	ep.FailureReason = failure.String
	ep.CreatedAt = parseTime(createdRaw)
	ep.UpdatedAt = parseTime(updatedRaw)
	ep.StartedAt = parseOptionalTime(startedRaw)
	ep.FinishedAt = parseOptionalTime(finishedRaw)
	return &ep, nil
}

// NewEpisode describes an accepted generation request.
type NewEpisode struct {
	Name         string
	NotebookID   string
	Template     EpisodeTemplate
	Instructions string
	Length       LengthCategory
}

// CreateEpisode inserts an episode in the pending state with its template
// snapshot.
func (s *Store) CreateEpisode(ctx context.Context, in NewEpisode) (*Episode, error) {
	snapshot, err := json.Marshal(in.Template)
	if err != nil {
		return nil, fmt.Errorf("encode template snapshot: %w", err)
	}
	id := newID()
	ts := now()
	_, err = s.execWithRetry(ctx,
		`INSERT INTO episodes (
            id, name, notebook_id, template_name, template_json, instructions,
            length, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, in.NotebookID, in.Template.Name, string(snapshot),
		nullableString(in.Instructions), string(in.Length), StatusPending, ts, ts,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return nil, notFound("notebook", in.NotebookID)
		}
		return nil, fmt.Errorf("insert episode: %w", err)
	}
	return s.GetEpisode(ctx, id)
}

// GetEpisode fetches an episode by id, returning ErrNotFound when missing.
func (s *Store) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("episode", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return ep, nil
}

// ListEpisodes returns a notebook's episodes, newest first. An empty
// notebookID lists every episode.
func (s *Store) ListEpisodes(ctx context.Context, notebookID string) ([]*Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes`
	var args []any
	if notebookID != "" {
		query += ` WHERE notebook_id = ?`
		args = append(args, notebookID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	return s.queryEpisodes(ctx, query, args...)
}

// ListEpisodesByStatus returns episodes in any of the given statuses, oldest first.
func (s *Store) ListEpisodesByStatus(ctx context.Context, statuses ...Status) ([]*Episode, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE status IN (` +
		makePlaceholders(len(statuses)) + `) ORDER BY created_at, rowid`
	return s.queryEpisodes(ctx, query, statusArgs(statuses)...)
}

func (s *Store) queryEpisodes(ctx context.Context, query string, args ...any) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// StartEpisode moves a pending episode to generating.
func (s *Store) StartEpisode(ctx context.Context, id, stage string) (*Episode, error) {
	ts := now()
	return s.transition(ctx, id, StatusGenerating, []Status{StatusPending},
		`status = ?, progress_stage = ?, started_at = ?, updated_at = ?`,
		StatusGenerating, nullableString(stage), ts, ts,
	)
}

// UpdateEpisodeStage records pipeline progress on a generating episode.
func (s *Store) UpdateEpisodeStage(ctx context.Context, id, stage string) (*Episode, error) {
	return s.transition(ctx, id, StatusGenerating, []Status{StatusGenerating},
		`progress_stage = ?, updated_at = ?`,
		nullableString(stage), now(),
	)
}

// CompleteEpisode marks a generating episode completed. The audio reference
// and duration are written in the same update as the status.
func (s *Store) CompleteEpisode(ctx context.Context, id, audioRef string, durationSeconds float64) (*Episode, error) {
	if strings.TrimSpace(audioRef) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "complete episode", "audio reference is required", nil)
	}
	ts := now()
	return s.transition(ctx, id, StatusCompleted, []Status{StatusGenerating},
		`status = ?, audio_ref = ?, duration_seconds = ?, progress_stage = NULL, failure_reason = NULL, finished_at = ?, updated_at = ?`,
		StatusCompleted, audioRef, durationSeconds, ts, ts,
	)
}

// FailEpisode marks a pending or generating episode failed with reason, keeping
// the last progress stage.
func (s *Store) FailEpisode(ctx context.Context, id, reason string) (*Episode, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "generation failed"
	}
	ts := now()
	return s.transition(ctx, id, StatusFailed, []Status{StatusPending, StatusGenerating},
		`status = ?, failure_reason = ?, audio_ref = NULL, finished_at = ?, updated_at = ?`,
		StatusFailed, reason, ts, ts,
	)
}

// FailActiveEpisodes fails every pending or generating episode with reason and
// returns the affected ids. Used to settle jobs orphaned by a previous process.
func (s *Store) FailActiveEpisodes(ctx context.Context, reason string) ([]string, error) {
	active, err := s.ListEpisodesByStatus(ctx, StatusPending, StatusGenerating)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(active))
	for _, ep := range active {
		if _, err := s.FailEpisode(ctx, ep.ID, reason); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return ids, err
		}
		ids = append(ids, ep.ID)
	}
	return ids, nil
}

// DeleteEpisode removes a terminal episode and returns the removed record so
// the caller can clean up its audio.
func (s *Store) DeleteEpisode(ctx context.Context, id string) (*Episode, error) {
	ep, err := s.GetEpisode(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM episodes WHERE id = ? AND status IN (?, ?)`, id, StatusCompleted, StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("delete episode: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "delete episode",
			fmt.Sprintf("episode %s is still %s", id, ep.Status), nil)
	}
	return ep, nil
}

// transition applies a guarded update: the row changes only while its status
// is one of from. A miss reports ErrNotFound or ErrInvalidTransition.
func (s *Store) transition(ctx context.Context, id string, to Status, from []Status, set string, args ...any) (*Episode, error) {
	query := `UPDATE episodes SET ` + set + ` WHERE id = ? AND status IN (` + makePlaceholders(len(from)) + `)`
	args = append(args, id)
	args = append(args, statusArgs(from)...)
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update episode %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		current, err := s.GetEpisode(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: episode %s is %s, cannot become %s", ErrInvalidTransition, id, current.Status, to)
	}
	return s.GetEpisode(ctx, id)
}
