package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DimensionTable names one of the normalized, name-keyed lookup tables
// referenced by foreign key from the products table.
type DimensionTable string

// The dimension tables. Rows in these tables are created on demand and
// never deleted by the crawler.
const (
	Producers             DimensionTable = "producers"
	PromotingAgents       DimensionTable = "promoting_agents"
	Colors                DimensionTable = "colors"
	Regions               DimensionTable = "regions"
	Countries             DimensionTable = "countries"
	RegulatedDesignations DimensionTable = "regulated_designations"
	DesignationsOfOrigin  DimensionTable = "designations_of_origin"
	Classifications       DimensionTable = "classifications"
	GrapeVarieties        DimensionTable = "grape_varieties"
	SpecialFeatures       DimensionTable = "special_features"
)

var dimensionTables = map[DimensionTable]struct{}{
	Producers:             {},
	PromotingAgents:       {},
	Colors:                {},
	Regions:               {},
	Countries:             {},
	RegulatedDesignations: {},
	DesignationsOfOrigin:  {},
	Classifications:       {},
	GrapeVarieties:        {},
	SpecialFeatures:       {},
}

// UpsertDimension makes sure a row with the given name exists in the given
// dimension table and returns its id.
//
// The insert no-ops on a name conflict, in which case the existing id is
// fetched with a plain lookup. Two workers discovering the same new name
// concurrently both get the same id: whichever insert loses the race falls
// through to the select, and the unique constraint guarantees a single row.
func (s *Store) UpsertDimension(ctx context.Context, table DimensionTable, name string) (int64, error) {
	if _, ok := dimensionTables[table]; !ok {
		return 0, fmt.Errorf("unknown dimension table %q", table)
	}

	var id int64
	insert := fmt.Sprintf(
		`INSERT INTO %s (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`,
		table,
	)
	err := s.pool.QueryRow(ctx, insert, name).Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Conflict: the row already exists.
	default:
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE name = $1`, table)
	if err := s.pool.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("select id from %s by name: %w", table, err)
	}
	return id, nil
}
