package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notecast/internal/services"
)

const transformationColumns = "id, name, title, description, prompt, apply_default, created_at, updated_at"

func scanTransformation(scanner rowScanner) (*Transformation, error) {
	var (
		tr           Transformation
		description  sql.NullString
		applyDefault int
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(&tr.ID, &tr.Name, &tr.Title, &description, &tr.Prompt, &applyDefault, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	tr.Description = description.String
	tr.ApplyDefault = applyDefault != 0
	tr.CreatedAt = parseTime(createdRaw)
	tr.UpdatedAt = parseTime(updatedRaw)
	return &tr, nil
}

func duplicateName(op, name string) error {
	return services.Wrap(services.ErrValidation, "store", op, fmt.Sprintf("name %q already exists", name), nil)
}

// CreateTransformation inserts a transformation. When ApplyDefault is set the
// new row becomes the catalog default in the same transaction.
func (s *Store) CreateTransformation(ctx context.Context, in Transformation) (*Transformation, error) {
	ctx = ensureContext(ctx)
	id := newID()
	ts := now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transformations (`+transformationColumns+`) VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
			id, in.Name, in.Title, nullableString(in.Description), in.Prompt, ts, ts,
		); err != nil {
			return err
		}
		if in.ApplyDefault {
			return setDefaultTx(ctx, tx, id)
		}
		return nil
	})
	if isUniqueViolation(err) {
		return nil, duplicateName("create transformation", in.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("insert transformation: %w", err)
	}
	return s.GetTransformation(ctx, id)
}

// UpdateTransformation replaces the editable fields of a transformation.
// in.ApplyDefault set to true also makes it the default in the same
// transaction; false leaves the flag alone.
func (s *Store) UpdateTransformation(ctx context.Context, in Transformation) (*Transformation, error) {
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE transformations SET name = ?, title = ?, description = ?, prompt = ?, updated_at = ? WHERE id = ?`,
			in.Name, in.Title, nullableString(in.Description), in.Prompt, now(), in.ID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("transformation", in.ID)
		}
		if in.ApplyDefault {
			return setDefaultTx(ctx, tx, in.ID)
		}
		return nil
	})
	switch {
	case isUniqueViolation(err):
		return nil, duplicateName("update transformation", in.Name)
	case errors.Is(err, services.ErrNotFound):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("update transformation: %w", err)
	}
	return s.GetTransformation(ctx, in.ID)
}

// DeleteTransformation removes a transformation. Deleting the default leaves
// the catalog without one.
func (s *Store) DeleteTransformation(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM transformations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transformation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("transformation", id)
	}
	return nil
}

// GetTransformation fetches a transformation by id.
func (s *Store) GetTransformation(ctx context.Context, id string) (*Transformation, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+transformationColumns+` FROM transformations WHERE id = ?`, id)
	tr, err := scanTransformation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("transformation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transformation: %w", err)
	}
	return tr, nil
}

// GetTransformationByName fetches a transformation by its unique name.
func (s *Store) GetTransformationByName(ctx context.Context, name string) (*Transformation, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+transformationColumns+` FROM transformations WHERE name = ?`, name)
	tr, err := scanTransformation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("transformation", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get transformation: %w", err)
	}
	return tr, nil
}

// ListTransformations returns every transformation sorted by name.
func (s *Store) ListTransformations(ctx context.Context) ([]*Transformation, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+transformationColumns+` FROM transformations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list transformations: %w", err)
	}
	defer rows.Close()

	var out []*Transformation
	for rows.Next() {
		tr, err := scanTransformation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transformation: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// SetDefaultTransformation makes id the only default transformation. The
// previous default is cleared in the same transaction.
func (s *Store) SetDefaultTransformation(ctx context.Context, id string) (*Transformation, error) {
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM transformations WHERE id = ?`, id).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			return notFound("transformation", id)
		}
		return setDefaultTx(ctx, tx, id)
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set default transformation: %w", err)
	}
	return s.GetTransformation(ctx, id)
}

func setDefaultTx(ctx context.Context, tx *sql.Tx, id string) error {
	ts := now()
	// The partial unique index is checked per row, so the old default is
	// cleared before the new one is raised.
	if _, err := tx.ExecContext(ctx,
		`UPDATE transformations SET apply_default = 0, updated_at = ? WHERE apply_default = 1 AND id <> ?`, ts, id,
	); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE transformations SET apply_default = 1, updated_at = ? WHERE id = ?`, ts, id,
	)
	return err
}

// UnsetDefaultTransformation clears the default flag catalog-wide. It reports
// whether a default existed.
func (s *Store) UnsetDefaultTransformation(ctx context.Context) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE transformations SET apply_default = 0, updated_at = ? WHERE apply_default = 1`, now(),
	)
	if err != nil {
		return false, fmt.Errorf("unset default transformation: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DefaultTransformation returns the current default, or nil when none is set.
func (s *Store) DefaultTransformation(ctx context.Context) (*Transformation, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+transformationColumns+` FROM transformations WHERE apply_default = 1`)
	tr, err := scanTransformation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get default transformation: %w", err)
	}
	return tr, nil
}

// CountDefaultTransformations reports how many rows carry the default flag.
func (s *Store) CountDefaultTransformations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM transformations WHERE apply_default = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count default transformations: %w", err)
	}
	return count, nil
}
