package model

// Selector is the feature-selection transform fixed at training time. It keeps
// the positions listed in its support, in order.
type Selector struct {
	inputDim int
	support  []int
}

// SelectorSpec is the serialized form of a Selector. An empty support keeps
// every input feature.
type SelectorSpec struct {
	Support []int `json:"support,omitempty"`
}

func newSelector(spec SelectorSpec, inputDim int) (*Selector, error) {
	if len(spec.Support) == 0 {
		support := make([]int, inputDim)
		for i := range support {
			support[i] = i
		}
		return &Selector{inputDim: inputDim, support: support}, nil
	}
	prev := -1
	for i, idx := range spec.Support {
		if idx < 0 || idx >= inputDim {
			return nil, invalid("selector support[%d]=%d outside vocabulary of %d", i, idx, inputDim)
		}
		if idx <= prev {
			return nil, invalid("selector support must be strictly increasing at position %d", i)
		}
		prev = idx
	}
	support := make([]int, len(spec.Support))
	copy(support, spec.Support)
	return &Selector{inputDim: inputDim, support: support}, nil
}

// InputDim is the length of the vectors Transform accepts.
func (s *Selector) InputDim() int { return s.inputDim }

// OutputDim is the length of the vectors Transform returns.
func (s *Selector) OutputDim() int { return len(s.support) }

// Support returns a copy of the kept positions.
func (s *Selector) Support() []int {
	out := make([]int, len(s.support))
	copy(out, s.support)
	return out
}

// Transform reduces a full feature vector to the trained feature subset.
func (s *Selector) Transform(full []float64) ([]float64, error) {
	if len(full) != s.inputDim {
		return nil, &ErrDimensionMismatch{Stage: "selector", Expected: s.inputDim, Actual: len(full)}
	}
	out := make([]float64, len(s.support))
	for i, idx := range s.support {
		out[i] = full[idx]
	}
	return out, nil
}
