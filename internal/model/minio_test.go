package model

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinIOSource_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinIOSource_Integration(t *testing.T) {
	const bucket = "test-gosymptom"

	src, err := NewMinIOSource("localhost:9000", "minioadmin", "minioadmin", false, bucket, "model/bundle.json")
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := src.Client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := src.Client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, src.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	data := readFixture(t)
	_, err = src.Client.PutObject(ctx, bucket, src.Key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	require.NoError(t, err)
	defer src.Client.RemoveObject(context.Background(), bucket, src.Key, minio.RemoveObjectOptions{})

	assert.Equal(t, "minio://localhost:9000/"+bucket+"/model/bundle.json", src.String())

	a, err := Load(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "Fungal infection", predictName(t, a, "itching", "skin_rash"))

	missing := &MinIOSource{Client: src.Client, Bucket: bucket, Key: "model/missing.json"}
	_, err = Load(ctx, missing)
	require.ErrorIs(t, err, ErrArtifactNotFound)
}
