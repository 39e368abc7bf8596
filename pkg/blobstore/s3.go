package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store implements Store against an S3-compatible bucket. Keys are the
// caller's own relative paths (FilePath / VaultPath), since File and
// Entity rows already carry their own identity and checksum.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config configures an S3Store. Endpoint is optional and, when set,
// switches the client to path-style addressing for MinIO/LocalStack-style
// endpoints.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// NewS3Store builds an S3Store from cfg, loading AWS credentials and
// region from the standard SDK default chain (environment, shared config,
// instance role).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Store) key(relPath string) (string, error) {
	cleaned, err := CleanRelativePath(relPath)
	if err != nil {
		return "", err
	}
	return s.prefix + cleaned, nil
}

func (s *S3Store) Put(ctx context.Context, relPath string, r io.Reader, size int64) error {
	key, err := s.key(relPath)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("blobstore: s3 put %q: %w", relPath, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, relPath string) (io.ReadCloser, error) {
	key, err := s.key(relPath)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: s3 get %q: %w", relPath, err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, relPath string) error {
	key, err := s.key(relPath)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("blobstore: s3 delete %q: %w", relPath, err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, relPath string) (bool, error) {
	key, err := s.key(relPath)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("blobstore: s3 head %q: %w", relPath, err)
	}
	return true, nil
}
