package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/gosaq/saq-crawler/internal/saq"
)

func extractedFixture() *saq.ExtractedProduct {
	return saq.NewExtractedProduct(
		saq.DetailedInfo{
			SAQCode:         "12345678",
			Producer:        ptr("Domaine Rolet"),
			Country:         ptr("France"),
			Size:            &saq.Size{ContainerCount: 1, ContainerMilliliters: 750},
			GrapeVarieties:  []saq.GrapeVariety{{Name: "Chardonnay", Percentage: ptr(80)}},
			SpecialFeatures: []string{"Organic product"},
		},
		&saq.LDProduct{
			Description: "A white wine from the Jura.",
			Image:       "https://www.saq.com/media/wine.png",
			Name:        "Domaine Rolet Arbois",
			SKU:         "12345678",
			Offers: saq.Offer{
				Availability:  saq.AvailabilityInStock,
				ItemCondition: saq.ConditionNew,
				Price:         25.40,
				PriceCurrency: "CAD",
				URL:           "https://www.saq.com/en/12345678",
			},
		},
		[]saq.Category{
			{Name: "Wine", URL: "https://www.saq.com/en/products/wine"},
			{Name: "White wine", URL: "https://www.saq.com/en/products/wine/white-wine"},
		},
	)
}

func TestPersistProductWritesEveryRelation(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	// Dimension rows for the present lookup fields, in field order.
	mock.ExpectQuery(`INSERT INTO producers`).
		WithArgs("Domaine Rolet").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`INSERT INTO countries`).
		WithArgs("France").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))

	mock.ExpectQuery(`INSERT INTO products`).
		WithArgs(
			(*float64)(nil),   // abv_percentage
			"in_stock",        // availability
			(*int64)(nil),     // classification_id
			(*int64)(nil),     // color_id
			ptr(1),            // container_count
			ptr(750),          // container_milliliters
			ptr(int64(2)),     // country_id
			"A white wine from the Jura.",
			(*int64)(nil), // designation_of_origin_id
			"https://www.saq.com/media/wine.png",
			"new", // item_condition
			"Domaine Rolet Arbois",
			25.40,
			ptr(int64(1)),    // producer_id
			(*string)(nil),   // product_of_quebec
			(*int64)(nil),    // promoting_agent_id
			(*int64)(nil),    // region_id
			(*int64)(nil),    // regulated_designation_id
			"12345678",       // saq_code
			(*string)(nil),   // sugar_content_equality
			(*float64)(nil),  // sugar_content_grams_per_liter
			(*string)(nil),   // upc_code
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(10)))

	mock.ExpectQuery(`INSERT INTO special_features`).
		WithArgs("Organic product").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO product_special_features`).
		WithArgs(int64(10), int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM product_special_features`).
		WithArgs(int64(10), []int64{3}).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	mock.ExpectQuery(`INSERT INTO grape_varieties`).
		WithArgs("Chardonnay").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO product_grape_varieties`).
		WithArgs(int64(10), int64(4), ptr(80)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM product_grape_varieties`).
		WithArgs(int64(10), []int64{4}).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	// Categories chain parent ids: "White wine" hangs off "Wine".
	mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs("Wine", "https://www.saq.com/en/products/wine", (*int64)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs("White wine", "https://www.saq.com/en/products/wine/white-wine", ptr(int64(5))).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(6)))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO product_categories`).
		WithArgs(int64(10), int64(5)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO product_categories`).
		WithArgs(int64(10), int64(6)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM product_categories`).
		WithArgs(int64(10), []int64{5, 6}).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	err := store.PersistProduct(context.Background(), extractedFixture())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistProductStopsAfterFailedUpsert(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO producers`).
		WithArgs("Domaine Rolet").
		WillReturnError(context.DeadlineExceeded)

	err := store.PersistProduct(context.Background(), extractedFixture())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistProductRejectsMissingLinkedData(t *testing.T) {
	t.Parallel()

	_, store := newMockStore(t)

	extracted := saq.NewExtractedProduct(saq.DetailedInfo{SAQCode: "12345678"}, nil, nil)
	err := store.PersistProduct(context.Background(), extracted)
	require.Error(t, err)
	require.Contains(t, err.Error(), "linked data")
}
