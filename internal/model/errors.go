package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArtifact is wrapped by every validation failure while decoding a bundle.
	ErrInvalidArtifact = errors.New("invalid model artifact")

	// ErrArtifactNotFound is returned by sources when the artifact object does not exist.
	ErrArtifactNotFound = errors.New("model artifact not found")
)

// ErrDimensionMismatch indicates a vector whose length differs from what a
// transform or classifier expects.
type ErrDimensionMismatch struct {
	Stage    string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: expected %d, got %d", e.Stage, e.Expected, e.Actual)
}

// ErrUnknownLabel is returned when a classifier emits an index the label decoder has no name for.
type ErrUnknownLabel struct {
	Index int
	Known int
}

func (e *ErrUnknownLabel) Error() string {
	return fmt.Sprintf("label index %d out of range [0,%d)", e.Index, e.Known)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArtifact, fmt.Sprintf(format, args...))
}
