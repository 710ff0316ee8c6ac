package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertCategory makes sure a row with the given name exists in the
// categories table and returns its id.
//
// Unlike products, an unchanged category upsert is a no-op write: the row
// (and its updated_at) is only touched when the url or parent actually
// differ from the stored values, so updated_at stays a true "last
// materially changed" signal. parentID links the category to the broader
// one preceding it in a breadcrumb chain; nil marks a chain root.
func (s *Store) UpsertCategory(ctx context.Context, name, url string, parentID *int64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, url, parent_category_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET url = EXCLUDED.url,
			parent_category_id = EXCLUDED.parent_category_id,
			updated_at = now()
		WHERE categories.url IS DISTINCT FROM EXCLUDED.url
			OR categories.parent_category_id IS DISTINCT FROM EXCLUDED.parent_category_id
		RETURNING id`,
		name, url, parentID,
	).Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Nothing changed, so the upsert wrote nothing.
	default:
		return 0, fmt.Errorf("upsert category %q: %w", name, err)
	}

	if err := s.pool.QueryRow(ctx,
		`SELECT id FROM categories WHERE name = $1`, name,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("select category %q by name: %w", name, err)
	}
	return id, nil
}
