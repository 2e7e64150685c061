package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cuemby/minicluster/pkg/types"
)

// S3Config holds settings for the S3 fetcher
type S3Config struct {
	Region       string
	Endpoint     string // empty = AWS default resolution
	UsePathStyle bool   // required by most S3-compatible servers
	MaxAttempts  int    // SDK retry attempts per request, 0 = SDK default
}

// getObjectAPI is the slice of the S3 client the fetcher uses
type getObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher fetches objects from S3 or an S3-compatible endpoint
type S3Fetcher struct {
	api getObjectAPI
}

// NewS3Fetcher builds a fetcher from the default AWS credential chain
// (environment, shared config, instance role) and cfg
func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(cfg.MaxAttempts))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %w", types.ErrStorage, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Fetcher{api: client}, nil
}

// Fetch downloads the whole object into memory
func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := f.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		var noBucket *s3types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, fmt.Errorf("%w: s3://%s/%s: %w", ErrNotFound, bucket, key, err)
		}
		return nil, fmt.Errorf("%w: failed to get s3://%s/%s: %w", types.ErrStorage, bucket, key, err)
	}
	if out.Body == nil {
		return nil, fmt.Errorf("%w: s3://%s/%s has no body", types.ErrStorage, bucket, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read s3://%s/%s: %w", types.ErrStorage, bucket, key, err)
	}
	return data, nil
}
