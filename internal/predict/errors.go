package predict

import (
	"errors"
	"fmt"

	"github.com/Skufu/GoSymptom/internal/reference"
)

var (
	// ErrNoSymptoms is returned when the selection is empty or blank. It is a
	// user-correctable warning, not a failure of the pipeline.
	ErrNoSymptoms = errors.New("please select at least one symptom")

	// ErrAbstained is wrapped when the configured Policy declines to name a
	// disease for the selection.
	ErrAbstained = errors.New("prediction abstained")
)

// ModelError reports that the classification capability is unavailable or
// produced something unusable.
type ModelError struct {
	Op  string
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Op, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// LookupError reports a predicted disease missing from a reference table.
type LookupError struct {
	Missing *reference.MissingError
}

func (e *LookupError) Error() string {
	return "lookup: " + e.Missing.Error()
}

func (e *LookupError) Unwrap() error { return e.Missing }
