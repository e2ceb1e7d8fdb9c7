package symptom

// FeatureVector is a dense 0/1 vector aligned to a Vocabulary.
type FeatureVector []float64

// Ones counts the set positions.
func (f FeatureVector) Ones() int {
	n := 0
	for _, x := range f {
		if x != 0 {
			n++
		}
	}
	return n
}

// Report describes how a selection was encoded.
type Report struct {
	Vector       FeatureVector
	Recognized   []string
	Unrecognized []string
}

// Encode sets the position of every selected symptom found in v.
// Unknown names are ignored; order and duplicates do not change the result.
func Encode(selected []string, v *Vocabulary) FeatureVector {
	return EncodeReport(selected, v).Vector
}

// EncodeReport is Encode plus the list of names that were and were not found.
// Blank names are dropped from both lists.
func EncodeReport(selected []string, v *Vocabulary) Report {
	r := Report{Vector: make(FeatureVector, v.Len())}
	seen := make(map[string]struct{}, len(selected))
	for _, raw := range selected {
		name := Normalize(raw)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		idx, ok := v.index[name]
		if !ok {
			r.Unrecognized = append(r.Unrecognized, name)
			continue
		}
		r.Vector[idx] = 1
		r.Recognized = append(r.Recognized, name)
	}
	return r
}
