package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"notecast/internal/services"
)

const sourceColumns = "id, notebook_id, kind, title, location, raw_content, full_text, created_at, updated_at"

func scanSource(scanner rowScanner) (*Source, error) {
	var (
		src        Source
		kind       string
		location   sql.NullString
		raw        sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&src.ID, &src.NotebookID, &kind, &src.Title, &location, &raw, &src.FullText, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	src.Kind = SourceKind(kind)
	src.Location = location.String
	src.RawContent = raw.String
	src.CreatedAt = parseTime(createdRaw)
	src.UpdatedAt = parseTime(updatedRaw)
	return &src, nil
}

// NewSource describes a source to insert. FullText is expected to be
// normalized already.
type NewSource struct {
	NotebookID string
	Kind       SourceKind
	Title      string
	Location   string
	RawContent string
	FullText   string
}

// CreateSource inserts a source into an existing notebook.
func (s *Store) CreateSource(ctx context.Context, in NewSource) (*Source, error) {
	if _, err := ParseSourceKind(string(in.Kind)); err != nil {
		return nil, services.Wrap(services.ErrValidation, "store", "create source", err.Error(), nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create source", "title is required", nil)
	}
	ok, err := s.exists(ensureContext(ctx), "notebooks", in.NotebookID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("notebook", in.NotebookID)
	}

	id := newID()
	ts := now()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO sources (`+sourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.NotebookID, string(in.Kind), title, nullableString(in.Location),
		nullableString(in.RawContent), in.FullText, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("insert source: %w", err)
	}
	return s.GetSource(ctx, id)
}

// GetSource fetches a source by id, returning ErrNotFound when missing.
func (s *Store) GetSource(ctx context.Context, id string) (*Source, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("source", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// ListSources returns a notebook's sources in creation order.
func (s *Store) ListSources(ctx context.Context, notebookID string) ([]*Source, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+sourceColumns+` FROM sources WHERE notebook_id = ? ORDER BY created_at, rowid`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source and, through the foreign key, its insights.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("source", id)
	}
	return nil
}
