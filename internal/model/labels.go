package model

import "strings"

// LabelDecoder maps classifier output indices back to disease names.
type LabelDecoder struct {
	labels []string
}

func newLabelDecoder(labels []string) (*LabelDecoder, error) {
	if len(labels) == 0 {
		return nil, invalid("no labels")
	}
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, len(labels))
	for i, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return nil, invalid("blank label at index %d", i)
		}
		if _, ok := seen[l]; ok {
			return nil, invalid("duplicate label %q", l)
		}
		seen[l] = struct{}{}
		out[i] = l
	}
	return &LabelDecoder{labels: out}, nil
}

// Decode returns the disease name for a label index.
func (d *LabelDecoder) Decode(index int) (string, error) {
	if index < 0 || index >= len(d.labels) {
		return "", &ErrUnknownLabel{Index: index, Known: len(d.labels)}
	}
	return d.labels[index], nil
}

// Labels returns every decodable disease name in index order.
func (d *LabelDecoder) Labels() []string {
	out := make([]string, len(d.labels))
	copy(out, d.labels)
	return out
}

// Len is the number of classes.
func (d *LabelDecoder) Len() int { return len(d.labels) }
