package symptom

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ListHeader is the single column name of the symptom list resource.
const ListHeader = "Symptom"

// ExtractFromTable flattens every column whose header starts with "Symptom"
// in row-major order and returns the first occurrence of each name.
// Blank cells and the "none" sentinel are skipped.
func ExtractFromTable(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("symptom table is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	var cols []int
	for i, h := range header {
		if strings.HasPrefix(cleanCell(h), ListHeader) {
			cols = append(cols, i)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no %s* columns in header %v", ListHeader, header)
	}

	var out []string
	seen := make(map[string]struct{})
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		for _, c := range cols {
			if c >= len(row) {
				continue
			}
			name := Normalize(cleanCell(row[c]))
			if name == "" || IsNoneSentinel(name) {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out, nil
}

// ReadList reads the single-column symptom list written by WriteList.
func ReadList(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read symptom list: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("symptom list is empty")
	}
	col := -1
	for i, h := range rows[0] {
		if strings.EqualFold(cleanCell(h), ListHeader) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("symptom list has no %q column", ListHeader)
	}
	out := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		if name := Normalize(cleanCell(row[col])); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

// WriteList writes names as a CSV with a single "Symptom" column.
func WriteList(w io.Writer, names []string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{ListHeader}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, name := range names {
		if err := writer.Write([]string{name}); err != nil {
			return fmt.Errorf("write %q: %w", name, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func cleanCell(v string) string {
	return strings.TrimSpace(strings.TrimPrefix(v, "\ufeff"))
}
