package model

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// MaxArtifactSize bounds how many bytes are read from a source, before and
// after decompression.
const MaxArtifactSize = 256 << 20

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Compression names the container detected around a bundle.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// DetectCompression sniffs the magic bytes at the start of data.
func DetectCompression(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(data, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(data, lz4Magic):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

func decompress(r io.Reader) ([]byte, error) {
	data, err := readLimited(r)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	kind := DetectCompression(data)
	var inner io.Reader
	switch kind {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", ErrInvalidArtifact, err)
		}
		defer zr.Close()
		inner = zr
	case CompressionZstd:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrInvalidArtifact, err)
		}
		defer zr.Close()
		inner = zr
	case CompressionLZ4:
		inner = lz4.NewReader(bytes.NewReader(data))
	}
	out, err := readLimited(inner)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArtifact, kind, err)
	}
	return out, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxArtifactSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxArtifactSize {
		return nil, fmt.Errorf("artifact exceeds %d bytes", MaxArtifactSize)
	}
	return data, nil
}
