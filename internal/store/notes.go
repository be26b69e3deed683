package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"notecast/internal/services"
)

const noteColumns = "id, notebook_id, title, content, created_at, updated_at"

func scanNote(scanner rowScanner) (*Note, error) {
	var (
		note       Note
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&note.ID, &note.NotebookID, &note.Title, &note.Content, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	note.CreatedAt = parseTime(createdRaw)
	note.UpdatedAt = parseTime(updatedRaw)
	return &note, nil
}

// CreateNote inserts a note into an existing notebook.
func (s *Store) CreateNote(ctx context.Context, notebookID, title, content string) (*Note, error) {
	if strings.TrimSpace(content) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create note", "content is required", nil)
	}
	ok, err := s.exists(ensureContext(ctx), "notebooks", notebookID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("notebook", notebookID)
	}
	id := newID()
	ts := now()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id, notebookID, strings.TrimSpace(title), content, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return s.GetNote(ctx, id)
}

// GetNote fetches a note by id, returning ErrNotFound when missing.
func (s *Store) GetNote(ctx context.Context, id string) (*Note, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("note", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return note, nil
}

// ListNotes returns a notebook's notes in creation order.
func (s *Store) ListNotes(ctx context.Context, notebookID string) ([]*Note, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+noteColumns+` FROM notes WHERE notebook_id = ? ORDER BY created_at, rowid`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// DeleteNote removes a note.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("note", id)
	}
	return nil
}
