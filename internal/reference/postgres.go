package reference

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Schema creates the tables LoadPostgres reads.
const Schema = `
CREATE TABLE IF NOT EXISTS disease_descriptions (
	disease     TEXT PRIMARY KEY,
	description TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS disease_medications (
	disease    TEXT PRIMARY KEY,
	medication TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS disease_precautions (
	disease    TEXT NOT NULL,
	position   INT  NOT NULL,
	precaution TEXT,
	PRIMARY KEY (disease, position)
);`

const (
	selectDescriptions = `SELECT disease, description FROM disease_descriptions`
	selectMedications  = `SELECT disease, medication FROM disease_medications`
	selectPrecautions  = `SELECT disease, COALESCE(precaution, '') FROM disease_precautions ORDER BY disease, position`
)

// LoadPostgres reads the three tables from Postgres. The queries run one after
// another so a single pooled connection is enough.
func LoadPostgres(ctx context.Context, q Querier) (*Tables, error) {
	t := NewTables()

	if err := queryPairs(ctx, q, selectDescriptions, func(disease, value string) {
		setFirst(t.Descriptions, disease, value)
	}); err != nil {
		return nil, fmt.Errorf("load descriptions: %w", err)
	}
	if err := queryPairs(ctx, q, selectMedications, func(disease, value string) {
		setFirst(t.Medications, disease, value)
	}); err != nil {
		return nil, fmt.Errorf("load medications: %w", err)
	}
	if err := queryPairs(ctx, q, selectPrecautions, func(disease, value string) {
		t.Precautions[disease] = append(t.Precautions[disease], value)
	}); err != nil {
		return nil, fmt.Errorf("load precautions: %w", err)
	}
	return t, nil
}

func queryPairs(ctx context.Context, q Querier, sql string, fn func(disease, value string)) error {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var disease, value string
		if err := rows.Scan(&disease, &value); err != nil {
			return err
		}
		fn(cleanCell(disease), value)
	}
	return rows.Err()
}

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SavePostgres creates the schema and replaces the contents of all three
// tables with t. Callers wanting atomicity pass a pgx.Tx.
func SavePostgres(ctx context.Context, e Execer, t *Tables) error {
	if _, err := e.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	for _, table := range []string{"disease_descriptions", "disease_medications", "disease_precautions"} {
		if _, err := e.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, d := range slices.Sorted(maps.Keys(t.Descriptions)) {
		if _, err := e.Exec(ctx, `INSERT INTO disease_descriptions (disease, description) VALUES ($1, $2)`, d, t.Descriptions[d]); err != nil {
			return fmt.Errorf("insert description %q: %w", d, err)
		}
	}
	for _, d := range slices.Sorted(maps.Keys(t.Medications)) {
		if _, err := e.Exec(ctx, `INSERT INTO disease_medications (disease, medication) VALUES ($1, $2)`, d, t.Medications[d]); err != nil {
			return fmt.Errorf("insert medication %q: %w", d, err)
		}
	}
	for _, d := range slices.Sorted(maps.Keys(t.Precautions)) {
		for i, p := range t.Precautions[d] {
			if _, err := e.Exec(ctx, `INSERT INTO disease_precautions (disease, position, precaution) VALUES ($1, $2, $3)`, d, i+1, p); err != nil {
				return fmt.Errorf("insert precaution %q/%d: %w", d, i+1, err)
			}
		}
	}
	return nil
}
