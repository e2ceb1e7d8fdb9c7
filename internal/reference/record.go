// Package reference holds the static disease tables joined onto every
// prediction: descriptions, medications and precautions, keyed by the exact
// disease name the label decoder emits.
package reference

import (
	"errors"
	"fmt"
	"strings"
)

// Table identifies one of the three reference tables.
type Table string

const (
	TableDescription Table = "description"
	TableMedications Table = "medications"
	TablePrecautions Table = "precautions"
)

// ErrSchema is wrapped when a table source lacks a required column.
var ErrSchema = errors.New("reference table schema")

// MissingError reports a disease name absent from one table.
type MissingError struct {
	Disease string
	Table   Table
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("disease %q has no row in the %s table", e.Disease, e.Table)
}

// Record is everything the tables know about one disease.
type Record struct {
	Disease     string   `json:"disease"`
	Description string   `json:"description"`
	Medications string   `json:"medications"`
	Precautions []string `json:"precautions"`
}

// Tables are loaded once and read-only afterwards. Precautions are stored as
// they appear in the source, sentinels included.
type Tables struct {
	Descriptions map[string]string
	Medications  map[string]string
	Precautions  map[string][]string
}

// NewTables returns empty tables ready to be filled by a loader.
func NewTables() *Tables {
	return &Tables{
		Descriptions: make(map[string]string),
		Medications:  make(map[string]string),
		Precautions:  make(map[string][]string),
	}
}

// Lookup joins disease against all three tables. The first table without a
// row for it, checked in description, medications, precautions order, yields
// a *MissingError; partial records are never returned.
func (t *Tables) Lookup(disease string) (Record, error) {
	desc, ok := t.Descriptions[disease]
	if !ok {
		return Record{}, &MissingError{Disease: disease, Table: TableDescription}
	}
	meds, ok := t.Medications[disease]
	if !ok {
		return Record{}, &MissingError{Disease: disease, Table: TableMedications}
	}
	prec, ok := t.Precautions[disease]
	if !ok {
		return Record{}, &MissingError{Disease: disease, Table: TablePrecautions}
	}
	return Record{
		Disease:     disease,
		Description: desc,
		Medications: meds,
		Precautions: append([]string(nil), prec...),
	}, nil
}

// Len is the number of diseases with a description row.
func (t *Tables) Len() int { return len(t.Descriptions) }

// CleanPrecautions drops blank entries and the "none" sentinel in any case,
// preserving their order.
func CleanPrecautions(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "none") {
			continue
		}
		out = append(out, v)
	}
	return out
}

// setFirst keeps the first value seen for a key.
func setFirst[V any](m map[string]V, key string, value V) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
