package reference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	tables, err := LoadCSV(context.Background(), "testdata")
	require.NoError(t, err)
	assert.Equal(t, 3, tables.Len())

	rec, err := tables.Lookup("Fungal infection")
	require.NoError(t, err)
	assert.Equal(t, "Fungal infection is a common skin condition caused by fungi.", rec.Description)
	assert.Contains(t, rec.Medications, "Fluconazole")
	// index column dropped, sentinels kept until cleaning
	assert.Equal(t, []string{
		"bath twice",
		"use detol or neem in bathing water",
		"None",
		"keep infected area dry",
	}, rec.Precautions)

	assert.Equal(t, []string{
		"bath twice",
		"use detol or neem in bathing water",
		"keep infected area dry",
	}, CleanPrecautions(rec.Precautions))
}

func TestLoadCSVErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCSV(context.Background(), t.TempDir())
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("missing column", func(t *testing.T) {
		dir := t.TempDir()
		copyFixtures(t, dir)
		writeFile(t, filepath.Join(dir, MedicationsFile), "Disease,Drug\nGERD,Antacids\n")

		_, err := LoadCSV(context.Background(), dir)
		require.ErrorIs(t, err, ErrSchema)
		assert.Contains(t, err.Error(), MedicationsFile)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := LoadCSV(ctx, "testdata")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestLookupMissing(t *testing.T) {
	tables, err := LoadCSV(context.Background(), "testdata")
	require.NoError(t, err)

	delete(tables.Medications, "GERD")
	_, err = tables.Lookup("GERD")
	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, TableMedications, missing.Table)

	_, err = tables.Lookup("Unknown disease")
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, TableDescription, missing.Table)
}

func TestLookupReturnsCopy(t *testing.T) {
	tables, err := LoadCSV(context.Background(), "testdata")
	require.NoError(t, err)

	rec, err := tables.Lookup("Allergy")
	require.NoError(t, err)
	rec.Precautions[0] = "changed"

	again, err := tables.Lookup("Allergy")
	require.NoError(t, err)
	assert.Equal(t, "apply calamine", again.Precautions[0])
}

func TestCleanPrecautions(t *testing.T) {
	assert.Equal(t, []string{"rest", "drink water"},
		CleanPrecautions([]string{"", " rest ", "NONE", "none", "None", "drink water", "  "}))
	assert.Empty(t, CleanPrecautions(nil))
}

func TestCheckConsistency(t *testing.T) {
	tables, err := LoadCSV(context.Background(), "testdata")
	require.NoError(t, err)

	assert.Empty(t, CheckConsistency([]string{"Allergy", "GERD", "Fungal infection"}, tables))

	delete(tables.Precautions, "GERD")
	issues := CheckConsistency([]string{"Allergy", "GERD", "Malaria"}, tables)
	require.Len(t, issues, 2)
	assert.Equal(t, Issue{Disease: "GERD", Missing: []Table{TablePrecautions}}, issues[0])
	assert.Equal(t, "Malaria", issues[1].Disease)
	assert.Len(t, issues[1].Missing, 3)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	tables, err := LoadCSV(context.Background(), "testdata")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, WriteCSV(dir, tables))

	again, err := LoadCSV(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, tables, again)
}

// fakeRows is a minimal pgx.Rows over in-memory string pairs.
type fakeRows struct {
	data [][2]string
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != 2 {
		return errors.New("fakeRows: want two destinations")
	}
	*dest[0].(*string) = row[0]
	*dest[1].(*string) = row[1]
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	row := r.data[r.pos-1]
	return []any{row[0], row[1]}, nil
}

type fakeDB struct {
	results map[string][][2]string
	queries []string
	execs   []string
	failOn  string
}

func (f *fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return nil, errors.New("relation does not exist")
	}
	for table, rows := range f.results {
		if strings.Contains(sql, table) {
			return &fakeRows{data: rows}, nil
		}
	}
	return &fakeRows{}, nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, nil
}

func TestLoadPostgres(t *testing.T) {
	db := &fakeDB{results: map[string][][2]string{
		"disease_descriptions": {{"GERD", "reflux"}, {"Allergy", "immune reaction"}},
		"disease_medications":  {{"GERD", "antacids"}, {"Allergy", "antihistamines"}},
		"disease_precautions": {
			{"Allergy", "apply calamine"},
			{"Allergy", ""},
			{"GERD", "avoid fatty spicy food"},
			{"GERD", "none"},
		},
	}}

	tables, err := LoadPostgres(context.Background(), db)
	require.NoError(t, err)
	assert.Len(t, db.queries, 3)

	rec, err := tables.Lookup("GERD")
	require.NoError(t, err)
	assert.Equal(t, "reflux", rec.Description)
	assert.Equal(t, []string{"avoid fatty spicy food", "none"}, rec.Precautions)
	assert.Equal(t, []string{"apply calamine", ""}, tables.Precautions["Allergy"])

	db.failOn = "disease_medications"
	_, err = LoadPostgres(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load medications")
}

func TestSavePostgres(t *testing.T) {
	tables, err := LoadCSV(context.Background(), "testdata")
	require.NoError(t, err)

	db := &fakeDB{}
	require.NoError(t, SavePostgres(context.Background(), db, tables))

	assert.Equal(t, Schema, db.execs[0])
	var inserts int
	for _, sql := range db.execs {
		if strings.HasPrefix(sql, "INSERT") {
			inserts++
		}
	}
	// 3 descriptions, 3 medications, 3x4 precaution slots
	assert.Equal(t, 18, inserts)
}

func copyFixtures(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{DescriptionFile, MedicationsFile, PrecautionsFile} {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		writeFile(t, filepath.Join(dir, name), string(data))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
