// Package model holds the pre-trained disease classifier bundle: symptom
// vocabulary, feature selector, classifier and label decoder.
//
// A bundle is a JSON document, optionally gzip, zstd or lz4 compressed, and is
// loaded once at startup from an ArtifactSource. Loading is all-or-nothing:
// any inconsistency between the four parts fails the whole load.
package model

import (
	"bytes"
	"context"
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/Skufu/GoSymptom/internal/symptom"
)

// FormatVersion is the only bundle layout this package decodes.
const FormatVersion = 1

// Bundle is the serialized artifact.
type Bundle struct {
	FormatVersion int            `json:"format_version"`
	Vocabulary    []string       `json:"vocabulary"`
	Selector      SelectorSpec   `json:"selector"`
	Classifier    ClassifierSpec `json:"classifier"`
	Labels        []string       `json:"labels"`
}

// Artifact is a validated, immutable bundle ready for prediction.
// It is safe for concurrent use.
type Artifact struct {
	Vocabulary *symptom.Vocabulary
	Selector   *Selector
	Classifier Classifier
	Labels     *LabelDecoder
}

// Build validates b and assembles an Artifact.
func (b Bundle) Build() (*Artifact, error) {
	if b.FormatVersion != FormatVersion {
		return nil, invalid("format_version %d, want %d", b.FormatVersion, FormatVersion)
	}
	vocab, err := symptom.NewVocabulary(b.Vocabulary)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	sel, err := newSelector(b.Selector, vocab.Len())
	if err != nil {
		return nil, err
	}
	labels, err := newLabelDecoder(b.Labels)
	if err != nil {
		return nil, err
	}
	clf, err := newClassifier(b.Classifier, sel.OutputDim(), labels.Len())
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Vocabulary: vocab,
		Selector:   sel,
		Classifier: clf,
		Labels:     labels,
	}, nil
}

// Decode reads a possibly compressed bundle from r and builds it.
func Decode(r io.Reader) (*Artifact, error) {
	raw, err := decompress(r)
	if err != nil {
		return nil, err
	}
	var b Bundle
	dec := gojson.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: decode bundle: %w", ErrInvalidArtifact, err)
	}
	return b.Build()
}

// Load opens src and decodes the artifact it holds.
func Load(ctx context.Context, src ArtifactSource) (*Artifact, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", src, err)
	}
	defer rc.Close()

	a, err := Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", src, err)
	}
	return a, nil
}

// Marshal encodes b as JSON. It is used by tooling and tests that produce bundles.
func Marshal(b Bundle) ([]byte, error) {
	return gojson.MarshalIndent(b, "", "  ")
}
