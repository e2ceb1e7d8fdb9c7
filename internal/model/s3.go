package model

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3GetObjectAPI is the part of the S3 client an S3Source needs.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source fetches the bundle from an S3 object.
type S3Source struct {
	Client S3GetObjectAPI
	Bucket string
	Key    string
}

// NewS3Source builds an S3Source using the default AWS credential chain.
func NewS3Source(ctx context.Context, bucket, key string) (*S3Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Source{
		Client: s3.NewFromConfig(cfg),
		Bucket: bucket,
		Key:    key,
	}, nil
}

func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %w", ErrArtifactNotFound, err)
		}
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: %w", ErrArtifactNotFound, err)
		}
		return nil, fmt.Errorf("get s3 object: %w", err)
	}
	return out.Body, nil
}

func (s *S3Source) String() string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Key)
}
