package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/vkarlsson/vardera/internal/pkg/env"
)

// StorageError wraps a blob upload/download failure so callers can tell
// storage trouble apart from provider or validation trouble.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// BlobStore is the boundary for image blob persistence. The core treats it as
// a dumb content-addressable-by-path store; tests substitute an in-memory
// implementation.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	PublicURL(path string) string
	Delete(ctx context.Context, key string) error
}

// Config holds S3 connection settings, read from the environment.
type Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string // set for S3-compatible providers
	PublicBaseURL   string // CDN or bucket website base for public links
}

// ConfigFromEnv builds the storage config from S3_* variables.
func ConfigFromEnv() *Config {
	return &Config{
		Region:          env.GetEnv("S3_REGION", "eu-central-1"),
		Bucket:          env.GetEnv("S3_BUCKET", "vardera-appraisals"),
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicBaseURL:   env.GetEnv("S3_PUBLIC_BASE_URL", ""),
	}
}

// S3Store stores appraisal images in an S3 bucket.
type S3Store struct {
	client *s3.Client
	config *Config
}

// NewS3Store creates the blob store and verifies the bucket is reachable.
func NewS3Store(cfg *Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// path-style for S3-compatible providers (MinIO, B2)
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	store := &S3Store{client: client, config: cfg}

	if _, err := client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("bucket %s not accessible: %w", cfg.Bucket, err)
	}

	log.Infof("[Storage] Successfully initialized S3 store for bucket: %s", cfg.Bucket)
	return store, nil
}

// Upload writes one blob and returns its storage path. The caller persists
// the database row only after this confirms, so a failed upload never leaves
// an image row pointing at a missing blob.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", &StorageError{Op: "upload", Key: key, Err: err}
	}
	return key, nil
}

// Get fetches a stored blob, used when a completed appraisal is re-analyzed.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// PublicURL resolves a storage path to a fetchable URL.
func (s *S3Store) PublicURL(path string) string {
	if base := strings.TrimRight(s.config.PublicBaseURL, "/"); base != "" {
		return base + "/" + strings.TrimLeft(path, "/")
	}
	if s.config.EndpointURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.config.EndpointURL, "/"), s.config.Bucket, path)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.Bucket, s.config.Region, path)
}

// Delete removes a blob. Used only when cleaning up after a partially failed
// multi-image upload.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}
