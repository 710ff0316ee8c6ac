package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return mock, store
}

func TestUpsertDimensionInsertsNewRow(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO producers \(name\)`).
		WithArgs("Domaine Rolet").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := store.UpsertDimension(context.Background(), Producers, "Domaine Rolet")
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDimensionFallsBackToSelectOnConflict(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	// ON CONFLICT DO NOTHING returns no row when the name already exists.
	mock.ExpectQuery(`INSERT INTO countries \(name\)`).
		WithArgs("France").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT id FROM countries WHERE name = \$1`).
		WithArgs("France").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, err := store.UpsertDimension(context.Background(), Countries, "France")
	require.NoError(t, err)
	require.Equal(t, int64(3), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDimensionRejectsUnknownTable(t *testing.T) {
	t.Parallel()

	_, store := newMockStore(t)

	_, err := store.UpsertDimension(context.Background(), DimensionTable("products"), "anything")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown dimension table")
}
