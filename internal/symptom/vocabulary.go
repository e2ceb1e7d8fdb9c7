// Package symptom maps human-readable symptom names onto the binary feature
// vectors the disease classifier was trained on.
package symptom

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyVocabulary is returned when a vocabulary has no entries.
var ErrEmptyVocabulary = errors.New("symptom vocabulary is empty")

// Vocabulary is the ordered list of symptom names a model was trained on.
// The index of a name is stable for the lifetime of the value.
type Vocabulary struct {
	names []string
	index map[string]int
}

// NewVocabulary builds a vocabulary from names in training order.
// Names are normalized; blank or duplicate names are rejected.
func NewVocabulary(names []string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, ErrEmptyVocabulary
	}
	v := &Vocabulary{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, raw := range names {
		name := Normalize(raw)
		if name == "" {
			return nil, fmt.Errorf("symptom vocabulary: blank name at position %d", i)
		}
		if prev, ok := v.index[name]; ok {
			return nil, fmt.Errorf("symptom vocabulary: %q at position %d duplicates position %d", name, i, prev)
		}
		v.names[i] = name
		v.index[name] = i
	}
	return v, nil
}

// Len returns the number of symptoms, which is also the feature vector length.
func (v *Vocabulary) Len() int {
	return len(v.names)
}

// Index returns the feature position of name.
func (v *Vocabulary) Index(name string) (int, bool) {
	i, ok := v.index[Normalize(name)]
	return i, ok
}

// Contains reports whether name is part of the vocabulary.
func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.Index(name)
	return ok
}

// Names returns a copy of the vocabulary in training order.
func (v *Vocabulary) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Normalize applies NFKC normalization and trims surrounding whitespace.
func Normalize(name string) string {
	return strings.TrimSpace(norm.NFKC.String(name))
}

// IsNoneSentinel reports whether value is the literal "none" placeholder used
// by the training and reference tables, in any letter case.
func IsNoneSentinel(value string) bool {
	return strings.EqualFold(Normalize(value), "none")
}
