package store

import (
	"context"
	"fmt"

	"github.com/gosaq/saq-crawler/internal/saq"
)

// PersistProduct makes sure the given extracted product is present and up
// to date in the database, updating all the necessary relations along the
// way: dimension rows for each present lookup field, the product row
// itself, and the three association sets (special features, grape
// varieties, categories).
//
// The operation is not wrapped in one outer transaction; only each
// association reconciliation is transactional. Dimension and product
// upserts that commit before a later step fails stay committed; they are
// idempotent and get re-touched on the next crawl of the same product. Any
// step's failure aborts the rest and is propagated to the caller.
func (s *Store) PersistProduct(ctx context.Context, product *saq.ExtractedProduct) error {
	info := product.DetailedInfo

	producerID, err := s.optionalDimension(ctx, Producers, info.Producer)
	if err != nil {
		return err
	}
	promotingAgentID, err := s.optionalDimension(ctx, PromotingAgents, info.PromotingAgent)
	if err != nil {
		return err
	}
	colorID, err := s.optionalDimension(ctx, Colors, info.Color)
	if err != nil {
		return err
	}
	regionID, err := s.optionalDimension(ctx, Regions, info.Region)
	if err != nil {
		return err
	}
	countryID, err := s.optionalDimension(ctx, Countries, info.Country)
	if err != nil {
		return err
	}
	regulatedDesignationID, err := s.optionalDimension(ctx, RegulatedDesignations, info.RegulatedDesignation)
	if err != nil {
		return err
	}
	designationOfOriginID, err := s.optionalDimension(ctx, DesignationsOfOrigin, info.DesignationOfOrigin)
	if err != nil {
		return err
	}
	classificationID, err := s.optionalDimension(ctx, Classifications, info.Classification)
	if err != nil {
		return err
	}

	fields, err := buildProductFields(product, &info)
	if err != nil {
		return err
	}
	fields.ProducerID = producerID
	fields.PromotingAgentID = promotingAgentID
	fields.ColorID = colorID
	fields.RegionID = regionID
	fields.CountryID = countryID
	fields.RegulatedDesignationID = regulatedDesignationID
	fields.DesignationOfOriginID = designationOfOriginID
	fields.ClassificationID = classificationID

	productID, err := s.UpsertProduct(ctx, fields)
	if err != nil {
		return err
	}

	featureIDs := make([]int64, 0, len(info.SpecialFeatures))
	for _, feature := range info.SpecialFeatures {
		featureID, err := s.UpsertDimension(ctx, SpecialFeatures, feature)
		if err != nil {
			return err
		}
		featureIDs = append(featureIDs, featureID)
	}
	if err := s.SetProductSpecialFeatures(ctx, productID, featureIDs); err != nil {
		return err
	}

	varietyRefs := make([]GrapeVarietyRef, 0, len(info.GrapeVarieties))
	for _, variety := range info.GrapeVarieties {
		varietyID, err := s.UpsertDimension(ctx, GrapeVarieties, variety.Name)
		if err != nil {
			return err
		}
		varietyRefs = append(varietyRefs, GrapeVarietyRef{ID: varietyID, Percentage: variety.Percentage})
	}
	if err := s.SetProductGrapeVarieties(ctx, productID, varietyRefs); err != nil {
		return err
	}

	categories := product.Categories()
	// Breadcrumb chains run broad to specific; each category's parent is the
	// id resolved for the category before it.
	categoryIDs := make([]int64, 0, len(categories))
	for _, category := range categories {
		var parentID *int64
		if len(categoryIDs) > 0 {
			parentID = &categoryIDs[len(categoryIDs)-1]
		}
		categoryID, err := s.UpsertCategory(ctx, category.Name, category.URL, parentID)
		if err != nil {
			return err
		}
		categoryIDs = append(categoryIDs, categoryID)
	}
	if err := s.SetProductCategories(ctx, productID, categoryIDs); err != nil {
		return err
	}

	return nil
}

// optionalDimension resolves an optional lookup field to a row id, skipping
// absent fields.
func (s *Store) optionalDimension(ctx context.Context, table DimensionTable, name *string) (*int64, error) {
	if name == nil {
		return nil, nil
	}
	id, err := s.UpsertDimension(ctx, table, *name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// buildProductFields flattens the extracted product into upsert parameters,
// serializing every enumeration to its canonical wire string. Dimension ids
// are filled in by the caller.
func buildProductFields(product *saq.ExtractedProduct, info *saq.DetailedInfo) (ProductFields, error) {
	ldProduct, err := product.Product()
	if err != nil {
		return ProductFields{}, err
	}

	availability, err := ldProduct.Offers.Availability.Wire()
	if err != nil {
		return ProductFields{}, err
	}
	condition, err := ldProduct.Offers.ItemCondition.Wire()
	if err != nil {
		return ProductFields{}, err
	}

	fields := ProductFields{
		ABVPercentage: info.ABVPercentage,
		Availability:  availability,
		Description:   ldProduct.Description,
		ImageURL:      ldProduct.Image,
		ItemCondition: condition,
		Name:          ldProduct.Name,
		PriceCAD:      ldProduct.Offers.Price,
		SAQCode:       info.SAQCode,
		UPCCode:       info.UPCCode,
	}

	if info.Size != nil {
		fields.ContainerCount = &info.Size.ContainerCount
		fields.ContainerMilliliters = &info.Size.ContainerMilliliters
	}
	if info.QuebecDesignation != nil {
		wire, err := info.QuebecDesignation.Wire()
		if err != nil {
			return ProductFields{}, err
		}
		fields.ProductOfQuebec = &wire
	}
	if info.SugarContent != nil {
		wire, err := info.SugarContent.Qualifier.Wire()
		if err != nil {
			return ProductFields{}, err
		}
		fields.SugarContentEquality = &wire
		fields.SugarContentGramsPerLiter = &info.SugarContent.GramsPerLiter
	}

	if fields.SAQCode == "" {
		return ProductFields{}, fmt.Errorf("extracted product has no SAQ code")
	}

	return fields, nil
}
