package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"notecast/internal/services"
)

const insightColumns = "id, source_id, insight_type, content, created_at, updated_at"

func scanInsight(scanner rowScanner) (*Insight, error) {
	var (
		insight    Insight
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&insight.ID, &insight.SourceID, &insight.InsightType, &insight.Content, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	insight.CreatedAt = parseTime(createdRaw)
	insight.UpdatedAt = parseTime(updatedRaw)
	return &insight, nil
}

// AppendInsight adds a new insight to a source. Existing insights of the same
// type are left untouched.
func (s *Store) AppendInsight(ctx context.Context, sourceID, insightType, content string) (*Insight, error) {
	if strings.TrimSpace(content) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "append insight", "content is required", nil)
	}
	if strings.TrimSpace(insightType) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "append insight", "insight type is required", nil)
	}
	id := newID()
	ts := now()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO insights (`+insightColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id, sourceID, insightType, content, ts, ts,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return nil, notFound("source", sourceID)
		}
		return nil, fmt.Errorf("insert insight: %w", err)
	}
	return s.GetInsight(ctx, id)
}

// GetInsight fetches an insight by id, returning ErrNotFound when missing.
func (s *Store) GetInsight(ctx context.Context, id string) (*Insight, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+insightColumns+` FROM insights WHERE id = ?`, id)
	insight, err := scanInsight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("insight", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get insight: %w", err)
	}
	return insight, nil
}

// ListInsights returns a source's insights in creation order.
func (s *Store) ListInsights(ctx context.Context, sourceID string) ([]*Insight, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+insightColumns+` FROM insights WHERE source_id = ? ORDER BY created_at, rowid`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var insights []*Insight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		insights = append(insights, insight)
	}
	return insights, rows.Err()
}

// DeleteInsight removes one insight.
func (s *Store) DeleteInsight(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM insights WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete insight: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("insight", id)
	}
	return nil
}
