package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ArtifactSource supplies the raw bytes of a model bundle.
type ArtifactSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// FileSource reads the bundle directly from a file.
type FileSource struct {
	Path string
}

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrArtifactNotFound, err)
		}
		return nil, err
	}
	return f, nil
}

func (s FileSource) String() string { return "file:" + s.Path }

// Base64Source decodes a bundle stored as base64 text by another source.
// Whitespace and line breaks in the text are ignored.
type Base64Source struct {
	Inner ArtifactSource
}

// NewBase64File returns the text-encoded indirection of a bundle file.
func NewBase64File(path string) Base64Source {
	return Base64Source{Inner: FileSource{Path: path}}
}

func (s Base64Source) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := s.Inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	text, err := readLimited(rc)
	if err != nil {
		return nil, fmt.Errorf("read base64 text: %w", err)
	}
	compact := strings.Join(strings.Fields(string(text)), "")
	data, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrInvalidArtifact, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s Base64Source) String() string { return "base64+" + s.Inner.String() }

// EncodeBase64 writes src as wrapped base64 text, the inverse of Base64Source.
func EncodeBase64(dst io.Writer, src io.Reader) error {
	data, err := readLimited(src)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	const width = 76
	for len(encoded) > 0 {
		n := min(width, len(encoded))
		if _, err := io.WriteString(dst, encoded[:n]+"\n"); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
