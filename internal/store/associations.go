package store

import (
	"context"
	"fmt"
)

// GrapeVarietyRef pairs a grape_varieties row id with the percentage of
// that grape present in the product, when the catalog reports one.
type GrapeVarietyRef struct {
	ID         int64
	Percentage *int
}

// SetProductSpecialFeatures makes the set of product_special_features rows
// for the given product equal exactly the given feature ids.
//
// Inside one transaction, every target member is upserted (bumping
// updated_at) and every row not in the target set is deleted in a single
// batch statement. Any failure rolls the whole transaction back, so partial
// membership is never observable. An empty target set clears all rows.
func (s *Store) SetProductSpecialFeatures(ctx context.Context, productID int64, featureIDs []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin special features transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, featureID := range featureIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_special_features (product_id, special_feature_id)
			VALUES ($1, $2)
			ON CONFLICT (product_id, special_feature_id) DO UPDATE SET updated_at = now()`,
			productID, featureID,
		); err != nil {
			return fmt.Errorf("upsert product special feature: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM product_special_features
		WHERE product_id = $1 AND NOT (special_feature_id = ANY($2))`,
		productID, idList(featureIDs),
	); err != nil {
		return fmt.Errorf("delete stale product special features: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit special features transaction: %w", err)
	}
	return nil
}

// SetProductGrapeVarieties makes the set of product_grape_varieties rows
// for the given product equal exactly the given variety refs. Percentages
// are refreshed to the provided values on conflict, alongside updated_at.
// Transaction semantics match SetProductSpecialFeatures.
func (s *Store) SetProductGrapeVarieties(ctx context.Context, productID int64, varieties []GrapeVarietyRef) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin grape varieties transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	varietyIDs := make([]int64, 0, len(varieties))
	for _, variety := range varieties {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_grape_varieties (product_id, grape_variety_id, percentage)
			VALUES ($1, $2, $3)
			ON CONFLICT (product_id, grape_variety_id) DO UPDATE
			SET updated_at = now(), percentage = EXCLUDED.percentage`,
			productID, variety.ID, variety.Percentage,
		); err != nil {
			return fmt.Errorf("upsert product grape variety: %w", err)
		}
		varietyIDs = append(varietyIDs, variety.ID)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM product_grape_varieties
		WHERE product_id = $1 AND NOT (grape_variety_id = ANY($2))`,
		productID, idList(varietyIDs),
	); err != nil {
		return fmt.Errorf("delete stale product grape varieties: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit grape varieties transaction: %w", err)
	}
	return nil
}

// SetProductCategories makes the set of product_categories rows for the
// given product equal exactly the given category ids. Transaction semantics
// match SetProductSpecialFeatures.
func (s *Store) SetProductCategories(ctx context.Context, productID int64, categoryIDs []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin categories transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, categoryID := range categoryIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_categories (product_id, category_id)
			VALUES ($1, $2)
			ON CONFLICT (product_id, category_id) DO UPDATE SET updated_at = now()`,
			productID, categoryID,
		); err != nil {
			return fmt.Errorf("upsert product category: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM product_categories
		WHERE product_id = $1 AND NOT (category_id = ANY($2))`,
		productID, idList(categoryIDs),
	); err != nil {
		return fmt.Errorf("delete stale product categories: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit categories transaction: %w", err)
	}
	return nil
}

// idList normalizes a possibly-nil id slice for use as an array parameter.
// A nil slice would bind as SQL NULL and make the NOT (... = ANY($2))
// predicate match nothing; an empty array correctly matches every row.
func idList(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
