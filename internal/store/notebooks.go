package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"notecast/internal/services"
)

const notebookColumns = "id, name, description, created_at, updated_at"

func scanNotebook(scanner rowScanner) (*Notebook, error) {
	var (
		nb          Notebook
		description sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(&nb.ID, &nb.Name, &description, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	nb.Description = description.String
	nb.CreatedAt = parseTime(createdRaw)
	nb.UpdatedAt = parseTime(updatedRaw)
	return &nb, nil
}

// CreateNotebook inserts a notebook.
func (s *Store) CreateNotebook(ctx context.Context, name, description string) (*Notebook, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create notebook", "name is required", nil)
	}
	id := newID()
	ts := now()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO notebooks (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, nullableString(strings.TrimSpace(description)), ts, ts,
	); err != nil {
		return nil, fmt.Errorf("insert notebook: %w", err)
	}
	return s.GetNotebook(ctx, id)
}

// GetNotebook fetches a notebook by id, returning ErrNotFound when missing.
func (s *Store) GetNotebook(ctx context.Context, id string) (*Notebook, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+notebookColumns+` FROM notebooks WHERE id = ?`, id)
	nb, err := scanNotebook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("notebook", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get notebook: %w", err)
	}
	return nb, nil
}

// ListNotebooks returns every notebook, newest first.
func (s *Store) ListNotebooks(ctx context.Context) ([]*Notebook, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+notebookColumns+` FROM notebooks ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	defer rows.Close()

	var notebooks []*Notebook
	for rows.Next() {
		nb, err := scanNotebook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notebook: %w", err)
		}
		notebooks = append(notebooks, nb)
	}
	return notebooks, rows.Err()
}

// UpdateNotebook renames a notebook or replaces its description.
func (s *Store) UpdateNotebook(ctx context.Context, id, name, description string) (*Notebook, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "update notebook", "name is required", nil)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE notebooks SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		name, nullableString(strings.TrimSpace(description)), now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update notebook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("notebook", id)
	}
	return s.GetNotebook(ctx, id)
}

// DeleteNotebook removes a notebook with its sources, notes, insights, and
// episodes. Notebooks with active episodes are refused. The audio references
// of removed episodes are returned so callers can delete the files.
func (s *Store) DeleteNotebook(ctx context.Context, id string) ([]string, error) {
	ctx = ensureContext(ctx)
	var audioRefs []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		audioRefs = audioRefs[:0]
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM notebooks WHERE id = ?`, id).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			return notFound("notebook", id)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM episodes WHERE notebook_id = ? AND status IN (?, ?)`,
			id, StatusPending, StatusGenerating,
		).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return services.Wrap(services.ErrValidation, "store", "delete notebook",
				fmt.Sprintf("notebook has %d episode(s) still generating", count), nil)
		}
		rows, err := tx.QueryContext(ctx, `SELECT audio_ref FROM episodes WHERE notebook_id = ? AND audio_ref IS NOT NULL`, id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var ref string
			if err := rows.Scan(&ref); err != nil {
				rows.Close()
				return err
			}
			audioRefs = append(audioRefs, ref)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM notebooks WHERE id = ?`, id)
		return err
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("delete notebook: %w", err)
	}
	return audioRefs, nil
}
