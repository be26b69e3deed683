package store

import (
	"context"
	"database/sql"
	"fmt"
)

// FetchNotebookCorpus returns the normalized text of a notebook's sources and
// notes, merged in creation order. Blank entries are skipped.
func (s *Store) FetchNotebookCorpus(ctx context.Context, notebookID string) ([]CorpusEntry, error) {
	ctx = ensureContext(ctx)
	ok, err := s.exists(ctx, "notebooks", notebookID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("notebook", notebookID)
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT kind, id, title, body, created_at FROM (
            SELECT 'source' AS kind, id, title, full_text AS body, created_at, rowid AS seq, 0 AS origin
            FROM sources WHERE notebook_id = ?
            UNION ALL
            SELECT 'note' AS kind, id, title, content AS body, created_at, rowid AS seq, 1 AS origin
            FROM notes WHERE notebook_id = ?
        )
        WHERE TRIM(body) <> ''
        ORDER BY created_at, origin, seq`,
		notebookID, notebookID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch notebook corpus: %w", err)
	}
	defer rows.Close()

	var corpus []CorpusEntry
	for rows.Next() {
		var (
			entry      CorpusEntry
			kind       string
			createdRaw sql.NullString
		)
		if err := rows.Scan(&kind, &entry.ID, &entry.Title, &entry.Text, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan corpus entry: %w", err)
		}
		entry.Kind = CorpusKind(kind)
		entry.CreatedAt = parseTime(createdRaw)
		corpus = append(corpus, entry)
	}
	return corpus, rows.Err()
}
