package model

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOSource fetches the bundle from MinIO or any S3-compatible endpoint.
type MinIOSource struct {
	Client *minio.Client
	Bucket string
	Key    string
}

// NewMinIOSource connects to endpoint with static credentials.
func NewMinIOSource(endpoint, accessKey, secretKey string, useSSL bool, bucket, key string) (*MinIOSource, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOSource{Client: client, Bucket: bucket, Key: key}, nil
}

func (s *MinIOSource) Open(ctx context.Context) (io.ReadCloser, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, s.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get minio object: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before decoding starts.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return nil, fmt.Errorf("%w: %w", ErrArtifactNotFound, err)
		}
		return nil, fmt.Errorf("stat minio object: %w", err)
	}
	return obj, nil
}

func (s *MinIOSource) String() string {
	return fmt.Sprintf("minio://%s/%s/%s", s.Client.EndpointURL().Host, s.Bucket, s.Key)
}
