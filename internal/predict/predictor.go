// Package predict turns a symptom selection into a disease prediction joined
// with its reference data.
package predict

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Skufu/GoSymptom/internal/model"
	"github.com/Skufu/GoSymptom/internal/reference"
	"github.com/Skufu/GoSymptom/internal/symptom"
)

// Context is the read-only state shared by every prediction. It is built once
// at startup and never mutated.
type Context struct {
	Artifact *model.Artifact
	Tables   *reference.Tables
}

// Policy controls when the predictor declines to name a disease. The zero
// value always returns the top prediction.
type Policy struct {
	// AbstainWhenUnrecognized abstains when none of the selected symptoms
	// are in the model vocabulary.
	AbstainWhenUnrecognized bool
	// MinConfidence abstains when the classifier confidence is below it.
	// Zero disables the check.
	MinConfidence float64
}

// Result is one prediction with its reference data.
type Result struct {
	Disease      string   `json:"disease"`
	Description  string   `json:"description"`
	Medications  string   `json:"medications"`
	Precautions  []string `json:"precautions"`
	Confidence   float64  `json:"confidence"`
	Unrecognized []string `json:"unrecognized,omitempty"`
}

// Predictor is safe for concurrent use.
type Predictor struct {
	ctx    Context
	policy Policy
	logger *slog.Logger
}

// New returns a Predictor over c. A nil logger uses slog.Default.
func New(c Context, policy Policy, logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{ctx: c, policy: policy, logger: logger}
}

// Predict encodes symptoms, classifies them and joins the disease against the
// reference tables. Either every table has a row for the disease or the call
// fails with a *LookupError.
func (p *Predictor) Predict(symptoms []string) (Result, error) {
	a := p.ctx.Artifact
	if a == nil {
		return Result{}, &ModelError{Op: "load", Err: errors.New("artifact not loaded")}
	}
	if p.ctx.Tables == nil {
		return Result{}, &ModelError{Op: "load", Err: errors.New("reference tables not loaded")}
	}

	report := symptom.EncodeReport(symptoms, a.Vocabulary)
	if len(report.Recognized) == 0 && len(report.Unrecognized) == 0 {
		return Result{}, ErrNoSymptoms
	}
	if len(report.Unrecognized) > 0 {
		p.logger.Debug("unrecognized symptoms ignored", "symptoms", report.Unrecognized)
	}
	if p.policy.AbstainWhenUnrecognized && len(report.Recognized) == 0 {
		return Result{Unrecognized: report.Unrecognized}, fmt.Errorf("%w: no recognized symptoms", ErrAbstained)
	}

	reduced, err := a.Selector.Transform(report.Vector)
	if err != nil {
		return Result{}, &ModelError{Op: "select features", Err: err}
	}
	pred, err := a.Classifier.Classify(reduced)
	if err != nil {
		return Result{}, &ModelError{Op: "classify", Err: err}
	}
	disease, err := a.Labels.Decode(pred.Label)
	if err != nil {
		return Result{}, &ModelError{Op: "decode label", Err: err}
	}
	if p.policy.MinConfidence > 0 && pred.Confidence < p.policy.MinConfidence {
		return Result{Confidence: pred.Confidence, Unrecognized: report.Unrecognized},
			fmt.Errorf("%w: confidence %.3f below %.3f", ErrAbstained, pred.Confidence, p.policy.MinConfidence)
	}

	rec, err := p.ctx.Tables.Lookup(disease)
	if err != nil {
		var missing *reference.MissingError
		if errors.As(err, &missing) {
			return Result{}, &LookupError{Missing: missing}
		}
		return Result{}, err
	}

	return Result{
		Disease:      rec.Disease,
		Description:  rec.Description,
		Medications:  rec.Medications,
		Precautions:  reference.CleanPrecautions(rec.Precautions),
		Confidence:   pred.Confidence,
		Unrecognized: report.Unrecognized,
	}, nil
}

// Options returns the selectable symptom names in vocabulary order.
func (p *Predictor) Options() []string {
	if p.ctx.Artifact == nil {
		return nil
	}
	return p.ctx.Artifact.Vocabulary.Names()
}

// Labels returns every disease the model can emit.
func (p *Predictor) Labels() []string {
	if p.ctx.Artifact == nil {
		return nil
	}
	return p.ctx.Artifact.Labels.Labels()
}

// Loaded reports whether both the artifact and the tables are present.
func (p *Predictor) Loaded() bool {
	return p.ctx.Artifact != nil && p.ctx.Tables != nil
}
