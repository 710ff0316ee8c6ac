package store

import (
	"context"
	"fmt"
)

// ProductFields contains the parameters to upsert a row into the products
// table. Callers are responsible for resolving the *ID fields through
// UpsertDimension/UpsertCategory first; all of them are subject to FOREIGN
// KEY constraints. The enumeration fields (Availability, ItemCondition,
// ProductOfQuebec, SugarContentEquality) carry canonical wire strings and
// are CHECK-constrained in the schema.
//
// Fields are kept in alphabetical order to make reasoning about which
// fields appear in the query easier.
type ProductFields struct {
	ABVPercentage             *float64
	Availability              string
	ClassificationID          *int64
	ColorID                   *int64
	ContainerCount            *int
	ContainerMilliliters      *int
	CountryID                 *int64
	Description               string
	DesignationOfOriginID     *int64
	ImageURL                  string
	ItemCondition             string
	Name                      string
	PriceCAD                  float64
	ProducerID                *int64
	ProductOfQuebec           *string
	PromotingAgentID          *int64
	RegionID                  *int64
	RegulatedDesignationID    *int64
	SAQCode                   string
	SugarContentEquality      *string
	SugarContentGramsPerLiter *float64
	UPCCode                   *string
}

// UpsertProduct makes sure a row with the given SAQ code exists in the
// products table and returns its id. On conflict every field except
// saq_code and created_at is refreshed and updated_at is bumped, whether or
// not anything actually changed. The returned id is stable across repeated
// crawls of the same code.
func (s *Store) UpsertProduct(ctx context.Context, fields ProductFields) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (
			abv_percentage,
			availability,
			classification_id,
			color_id,
			container_count,
			container_milliliters,
			country_id,
			description,
			designation_of_origin_id,
			image_url,
			item_condition,
			name,
			price_cad,
			producer_id,
			product_of_quebec,
			promoting_agent_id,
			region_id,
			regulated_designation_id,
			saq_code,
			sugar_content_equality,
			sugar_content_grams_per_liter,
			upc_code
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		ON CONFLICT (saq_code) DO UPDATE SET
			updated_at = now(),
			abv_percentage = EXCLUDED.abv_percentage,
			availability = EXCLUDED.availability,
			classification_id = EXCLUDED.classification_id,
			color_id = EXCLUDED.color_id,
			container_count = EXCLUDED.container_count,
			container_milliliters = EXCLUDED.container_milliliters,
			country_id = EXCLUDED.country_id,
			description = EXCLUDED.description,
			designation_of_origin_id = EXCLUDED.designation_of_origin_id,
			image_url = EXCLUDED.image_url,
			item_condition = EXCLUDED.item_condition,
			name = EXCLUDED.name,
			price_cad = EXCLUDED.price_cad,
			producer_id = EXCLUDED.producer_id,
			product_of_quebec = EXCLUDED.product_of_quebec,
			promoting_agent_id = EXCLUDED.promoting_agent_id,
			region_id = EXCLUDED.region_id,
			regulated_designation_id = EXCLUDED.regulated_designation_id,
			sugar_content_equality = EXCLUDED.sugar_content_equality,
			sugar_content_grams_per_liter = EXCLUDED.sugar_content_grams_per_liter,
			upc_code = EXCLUDED.upc_code
		RETURNING id`,
		fields.ABVPercentage,
		fields.Availability,
		fields.ClassificationID,
		fields.ColorID,
		fields.ContainerCount,
		fields.ContainerMilliliters,
		fields.CountryID,
		fields.Description,
		fields.DesignationOfOriginID,
		fields.ImageURL,
		fields.ItemCondition,
		fields.Name,
		fields.PriceCAD,
		fields.ProducerID,
		fields.ProductOfQuebec,
		fields.PromotingAgentID,
		fields.RegionID,
		fields.RegulatedDesignationID,
		fields.SAQCode,
		fields.SugarContentEquality,
		fields.SugarContentGramsPerLiter,
		fields.UPCCode,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert product %s: %w", fields.SAQCode, err)
	}
	return id, nil
}
