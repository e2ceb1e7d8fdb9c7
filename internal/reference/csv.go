package reference

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// File names inside the data directory.
const (
	DescriptionFile = "description.csv"
	MedicationsFile = "medications.csv"
	PrecautionsFile = "precautions_df.csv"
)

// LoadCSV reads the three tables from dir concurrently. Any failure fails the
// whole load.
func LoadCSV(ctx context.Context, dir string) (*Tables, error) {
	t := NewTables()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return readFile(ctx, filepath.Join(dir, DescriptionFile), func(r io.Reader) error {
			return readSingle(r, "Description", t.Descriptions)
		})
	})
	g.Go(func() error {
		return readFile(ctx, filepath.Join(dir, MedicationsFile), func(r io.Reader) error {
			return readSingle(r, "Medication", t.Medications)
		})
	})
	g.Go(func() error {
		return readFile(ctx, filepath.Join(dir, PrecautionsFile), func(r io.Reader) error {
			return readPrecautions(r, t.Precautions)
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

func readFile(ctx context.Context, path string, parse func(io.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open reference table: %w", err)
	}
	defer f.Close()
	if err := parse(f); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

type csvTable struct {
	header []string
	rows   [][]string
}

func readTable(r io.Reader) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrSchema)
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = cleanCell(h)
	}
	return &csvTable{header: header, rows: records[1:]}, nil
}

func (t *csvTable) column(name string) (int, error) {
	for i, h := range t.header {
		if strings.EqualFold(h, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: no %q column in %v", ErrSchema, name, t.header)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return cleanCell(row[i])
}

// readSingle fills dst from the Disease column and one value column.
func readSingle(r io.Reader, valueColumn string, dst map[string]string) error {
	t, err := readTable(r)
	if err != nil {
		return err
	}
	dcol, err := t.column("Disease")
	if err != nil {
		return err
	}
	vcol, err := t.column(valueColumn)
	if err != nil {
		return err
	}
	for _, row := range t.rows {
		disease := cell(row, dcol)
		if disease == "" {
			continue
		}
		setFirst(dst, disease, cell(row, vcol))
	}
	return nil
}

// readPrecautions treats every column other than Disease and the unnamed index
// columns pandas leaves behind as a precaution slot, in header order.
func readPrecautions(r io.Reader, dst map[string][]string) error {
	t, err := readTable(r)
	if err != nil {
		return err
	}
	dcol, err := t.column("Disease")
	if err != nil {
		return err
	}
	var cols []int
	for i, h := range t.header {
		if i == dcol || isIndexColumn(h) {
			continue
		}
		cols = append(cols, i)
	}
	if len(cols) == 0 {
		return fmt.Errorf("%w: no precaution columns in %v", ErrSchema, t.header)
	}
	for _, row := range t.rows {
		disease := cell(row, dcol)
		if disease == "" {
			continue
		}
		values := make([]string, len(cols))
		for j, c := range cols {
			values[j] = cell(row, c)
		}
		setFirst(dst, disease, values)
	}
	return nil
}

func isIndexColumn(header string) bool {
	return header == "" || strings.HasPrefix(header, "Unnamed:")
}

func cleanCell(v string) string {
	return strings.TrimSpace(strings.TrimPrefix(v, "\ufeff"))
}

// WriteCSV writes the tables in the layout LoadCSV reads, one file per table.
// Precaution rows are padded to the widest row.
func WriteCSV(dir string, t *Tables) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	var desc, meds, prec [][]string
	for _, d := range slices.Sorted(maps.Keys(t.Descriptions)) {
		desc = append(desc, []string{d, t.Descriptions[d]})
	}
	for _, d := range slices.Sorted(maps.Keys(t.Medications)) {
		meds = append(meds, []string{d, t.Medications[d]})
	}
	width := 0
	for _, p := range t.Precautions {
		width = max(width, len(p))
	}
	precHeader := []string{"Disease"}
	for i := 1; i <= width; i++ {
		precHeader = append(precHeader, fmt.Sprintf("Precaution_%d", i))
	}
	for _, d := range slices.Sorted(maps.Keys(t.Precautions)) {
		row := make([]string, width+1)
		row[0] = d
		copy(row[1:], t.Precautions[d])
		prec = append(prec, row)
	}

	if err := writeTable(filepath.Join(dir, DescriptionFile), []string{"Disease", "Description"}, desc); err != nil {
		return err
	}
	if err := writeTable(filepath.Join(dir, MedicationsFile), []string{"Disease", "Medication"}, meds); err != nil {
		return err
	}
	return writeTable(filepath.Join(dir, PrecautionsFile), precHeader, prec)
}

func writeTable(path string, header []string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
