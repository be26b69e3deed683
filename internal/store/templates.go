package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const templateColumns = "name, spec_json, created_at, updated_at"

func scanTemplate(scanner rowScanner) (*EpisodeTemplate, error) {
	var (
		name       string
		specJSON   string
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&name, &specJSON, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	var tpl EpisodeTemplate
	if err := json.Unmarshal([]byte(specJSON), &tpl); err != nil {
		return nil, fmt.Errorf("decode template %q: %w", name, err)
	}
	tpl.Name = name
	tpl.CreatedAt = parseTime(createdRaw)
	tpl.UpdatedAt = parseTime(updatedRaw)
	return &tpl, nil
}

// CreateTemplate inserts an episode template. Names are unique.
func (s *Store) CreateTemplate(ctx context.Context, tpl EpisodeTemplate) (*EpisodeTemplate, error) {
	payload, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	ts := now()
	_, err = s.execWithRetry(ctx,
		`INSERT INTO episode_templates (`+templateColumns+`) VALUES (?, ?, ?, ?)`,
		tpl.Name, string(payload), ts, ts,
	)
	if isUniqueViolation(err) {
		return nil, duplicateName("create template", tpl.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return s.GetTemplate(ctx, tpl.Name)
}

// SaveTemplate inserts a template or replaces the existing one with the same
// name. In-flight episodes keep their snapshot.
func (s *Store) SaveTemplate(ctx context.Context, tpl EpisodeTemplate) (*EpisodeTemplate, error) {
	payload, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	ts := now()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO episode_templates (`+templateColumns+`) VALUES (?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET spec_json = excluded.spec_json, updated_at = excluded.updated_at`,
		tpl.Name, string(payload), ts, ts,
	); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return s.GetTemplate(ctx, tpl.Name)
}

// GetTemplate fetches a template by name, returning ErrNotFound when missing.
func (s *Store) GetTemplate(ctx context.Context, name string) (*EpisodeTemplate, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+templateColumns+` FROM episode_templates WHERE name = ?`, name)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("template", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}

// ListTemplates returns every template sorted by name.
func (s *Store) ListTemplates(ctx context.Context) ([]*EpisodeTemplate, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+templateColumns+` FROM episode_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*EpisodeTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

// DeleteTemplate removes a template. Episodes keep their snapshot.
func (s *Store) DeleteTemplate(ctx context.Context, name string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM episode_templates WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("template", name)
	}
	return nil
}
