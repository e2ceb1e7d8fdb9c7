package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Classifier kinds understood by the bundle decoder.
const (
	KindLinear = "linear"
	KindTree   = "tree"
	KindForest = "forest"
)

// Prediction is the single top class chosen by a Classifier.
type Prediction struct {
	Label      int
	Confidence float64
}

// Classifier maps a reduced feature vector to a label index.
type Classifier interface {
	Classify(x []float64) (Prediction, error)
	NumFeatures() int
	NumClasses() int
}

// ClassifierSpec is the serialized classifier. Exactly the field matching
// Kind is read.
type ClassifierSpec struct {
	Kind   string      `json:"kind"`
	Linear *LinearSpec `json:"linear,omitempty"`
	Tree   *TreeSpec   `json:"tree,omitempty"`
	Forest *ForestSpec `json:"forest,omitempty"`
}

// LinearSpec holds a one-vs-rest or multinomial linear model:
// one coefficient row and intercept per class. A single row with two labels
// is a binary decision function.
type LinearSpec struct {
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// TreeSpec is a flattened decision tree. Node 0 is the root; leaves have
// Left == -1.
type TreeSpec struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode is one decision tree node. Samples go left when
// x[Feature] <= Threshold.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// ForestSpec is an ensemble whose leaf distributions are averaged.
type ForestSpec struct {
	Trees []TreeSpec `json:"trees"`
}

func newClassifier(spec ClassifierSpec, numFeatures, numClasses int) (Classifier, error) {
	switch spec.Kind {
	case KindLinear:
		if spec.Linear == nil {
			return nil, invalid("classifier kind %q without linear section", spec.Kind)
		}
		return newLinear(*spec.Linear, numFeatures, numClasses)
	case KindTree:
		if spec.Tree == nil {
			return nil, invalid("classifier kind %q without tree section", spec.Kind)
		}
		return newTree(*spec.Tree, numFeatures, numClasses)
	case KindForest:
		if spec.Forest == nil || len(spec.Forest.Trees) == 0 {
			return nil, invalid("classifier kind %q without trees", spec.Kind)
		}
		f := &forest{numFeatures: numFeatures, numClasses: numClasses}
		for i, ts := range spec.Forest.Trees {
			t, err := newTree(ts, numFeatures, numClasses)
			if err != nil {
				return nil, fmt.Errorf("forest tree %d: %w", i, err)
			}
			f.trees = append(f.trees, t)
		}
		return f, nil
	default:
		return nil, invalid("unknown classifier kind %q", spec.Kind)
	}
}

type linear struct {
	coef      *mat.Dense
	intercept *mat.VecDense
	binary    bool
}

func newLinear(spec LinearSpec, numFeatures, numClasses int) (*linear, error) {
	rows := len(spec.Coef)
	binary := rows == 1 && numClasses == 2
	if rows != numClasses && !binary {
		return nil, invalid("linear classifier has %d coefficient rows for %d labels", rows, numClasses)
	}
	if len(spec.Intercept) != rows {
		return nil, invalid("linear classifier has %d intercepts for %d rows", len(spec.Intercept), rows)
	}
	data := make([]float64, 0, rows*numFeatures)
	for i, row := range spec.Coef {
		if len(row) != numFeatures {
			return nil, invalid("coefficient row %d has %d values, selector yields %d features", i, len(row), numFeatures)
		}
		for _, c := range row {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return nil, invalid("non-finite coefficient in row %d", i)
			}
		}
		data = append(data, row...)
	}
	intercept := make([]float64, rows)
	copy(intercept, spec.Intercept)
	return &linear{
		coef:      mat.NewDense(rows, numFeatures, data),
		intercept: mat.NewVecDense(rows, intercept),
		binary:    binary,
	}, nil
}

func (l *linear) NumFeatures() int {
	_, c := l.coef.Dims()
	return c
}

func (l *linear) NumClasses() int {
	if l.binary {
		return 2
	}
	r, _ := l.coef.Dims()
	return r
}

// Classify computes coef·x + intercept and returns the arg max. Confidence is
// the softmax of the scores (a logistic for the binary case).
func (l *linear) Classify(x []float64) (Prediction, error) {
	rows, cols := l.coef.Dims()
	if len(x) != cols {
		return Prediction{}, &ErrDimensionMismatch{Stage: "linear classifier", Expected: cols, Actual: len(x)}
	}
	in := make([]float64, cols)
	copy(in, x)
	scores := mat.NewVecDense(rows, nil)
	scores.MulVec(l.coef, mat.NewVecDense(cols, in))
	scores.AddVec(scores, l.intercept)

	if l.binary {
		p := 1 / (1 + math.Exp(-scores.AtVec(0)))
		if scores.AtVec(0) > 0 {
			return Prediction{Label: 1, Confidence: p}, nil
		}
		return Prediction{Label: 0, Confidence: 1 - p}, nil
	}
	raw := scores.RawVector().Data
	best := argmax(raw)
	return Prediction{Label: best, Confidence: softmaxAt(raw, best)}, nil
}

type tree struct {
	nodes       []TreeNode
	numFeatures int
	numClasses  int
}

func newTree(spec TreeSpec, numFeatures, numClasses int) (*tree, error) {
	n := len(spec.Nodes)
	if n == 0 {
		return nil, invalid("tree without nodes")
	}
	nodes := make([]TreeNode, n)
	for i, node := range spec.Nodes {
		if node.Left == -1 {
			if len(node.Value) != numClasses {
				return nil, invalid("leaf %d has %d class values, want %d", i, len(node.Value), numClasses)
			}
			var sum float64
			for _, v := range node.Value {
				if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, invalid("leaf %d has an invalid class value", i)
				}
				sum += v
			}
			if sum == 0 {
				return nil, invalid("leaf %d has no class weight", i)
			}
		} else {
			// children always follow their parent, which rules out cycles
			if node.Left <= i || node.Left >= n || node.Right <= i || node.Right >= n {
				return nil, invalid("node %d has children (%d,%d) outside (%d,%d)", i, node.Left, node.Right, i, n)
			}
			if node.Feature < 0 || node.Feature >= numFeatures {
				return nil, invalid("node %d splits on feature %d of %d", i, node.Feature, numFeatures)
			}
		}
		node.Value = append([]float64(nil), node.Value...)
		nodes[i] = node
	}
	return &tree{nodes: nodes, numFeatures: numFeatures, numClasses: numClasses}, nil
}

func (t *tree) NumFeatures() int { return t.numFeatures }
func (t *tree) NumClasses() int  { return t.numClasses }

func (t *tree) leaf(x []float64) []float64 {
	i := 0
	for t.nodes[i].Left != -1 {
		node := t.nodes[i]
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
	return t.nodes[i].Value
}

func (t *tree) distribution(x []float64) []float64 {
	return normalize(t.leaf(x))
}

func (t *tree) Classify(x []float64) (Prediction, error) {
	if len(x) != t.numFeatures {
		return Prediction{}, &ErrDimensionMismatch{Stage: "tree classifier", Expected: t.numFeatures, Actual: len(x)}
	}
	dist := t.distribution(x)
	best := argmax(dist)
	return Prediction{Label: best, Confidence: dist[best]}, nil
}

type forest struct {
	trees       []*tree
	numFeatures int
	numClasses  int
}

func (f *forest) NumFeatures() int { return f.numFeatures }
func (f *forest) NumClasses() int  { return f.numClasses }

func (f *forest) Classify(x []float64) (Prediction, error) {
	if len(x) != f.numFeatures {
		return Prediction{}, &ErrDimensionMismatch{Stage: "forest classifier", Expected: f.numFeatures, Actual: len(x)}
	}
	avg := make([]float64, f.numClasses)
	for _, t := range f.trees {
		for i, p := range t.distribution(x) {
			avg[i] += p
		}
	}
	for i := range avg {
		avg[i] /= float64(len(f.trees))
	}
	best := argmax(avg)
	return Prediction{Label: best, Confidence: avg[best]}, nil
}

// argmax returns the first index holding the largest value.
func argmax(xs []float64) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}

func softmaxAt(scores []float64, k int) float64 {
	maxScore := scores[argmax(scores)]
	var sum float64
	for _, s := range scores {
		sum += math.Exp(s - maxScore)
	}
	return math.Exp(scores[k]-maxScore) / sum
}

func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	if sum == 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / sum
	}
	return out
}
