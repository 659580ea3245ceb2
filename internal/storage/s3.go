package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ContentType is the media type GeoPackages are published with.
const ContentType = "application/geopackage+sqlite3"

// S3Storage publishes GeoPackages to AWS S3 or an S3-compatible store.
type S3Storage struct {
	client     *s3.Client
	bucket     string
	partSize   int64
	maxRetries int
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Region string
	// Endpoint overrides the service endpoint (MinIO, LocalStack).
	Endpoint     string
	UsePathStyle bool
	// PartSize is the size above which a GeoPackage is sent in parts.
	PartSize int64
	// Credentials replaces the default credential chain when set.
	Credentials aws.CredentialsProvider
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region:   "us-east-1",
		PartSize: DefaultPartSize,
	}
}

// NewS3Storage creates an S3 publisher target for bucket.
func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultPartSize
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Credentials != nil {
		opts = append(opts, config.WithCredentialsProvider(cfg.Credentials))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Storage{
		client:     client,
		bucket:     bucket,
		partSize:   cfg.PartSize,
		maxRetries: 3,
	}, nil
}

// Put uploads localPath to key, replacing any existing object.
func (s *S3Storage) Put(ctx context.Context, localPath, key string) (string, error) {
	return s.put(ctx, localPath, key, nil)
}

// ConditionalPut uploads localPath to key only if no object has that key.
// The store evaluates the If-None-Match precondition, so two concurrent
// publishers cannot both succeed. A taken key yields ErrObjectExists.
func (s *S3Storage) ConditionalPut(ctx context.Context, localPath, key string) (string, error) {
	return s.put(ctx, localPath, key, aws.String("*"))
}

func (s *S3Storage) put(ctx context.Context, localPath, key string, ifNoneMatch *string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	size := stat.Size()

	var etag string
	err = s.retryWithBackoff(ctx, func() error {
		var err error
		if size <= s.partSize {
			etag, err = s.putObject(ctx, file, size, key, ifNoneMatch)
		} else {
			etag, err = s.putParts(ctx, file, size, key, ifNoneMatch)
		}
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: %s", ErrObjectExists, key)
		}
		return err
	})
	if errors.Is(err, ErrObjectExists) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return etag, nil
}

func (s *S3Storage) putObject(ctx context.Context, file *os.File, size int64, key string, ifNoneMatch *string) (string, error) {
	resp, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          io.NewSectionReader(file, 0, size),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(ContentType),
		IfNoneMatch:   ifNoneMatch,
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(resp.ETag), nil
}

// putParts sends a large GeoPackage as a multipart upload. The precondition
// is checked when the upload is completed.
func (s *S3Storage) putParts(ctx context.Context, file *os.File, size int64, key string, ifNoneMatch *string) (string, error) {
	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(ContentType),
	})
	if err != nil {
		return "", err
	}
	uploadID := created.UploadId

	numParts := int(math.Ceil(float64(size) / float64(s.partSize)))
	parts := make([]types.CompletedPart, 0, numParts)
	for n := 1; n <= numParts; n++ {
		offset := int64(n-1) * s.partSize
		length := min(s.partSize, size-offset)

		resp, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(int32(n)),
			Body:          io.NewSectionReader(file, offset, length),
			ContentLength: aws.Int64(length),
		})
		if err != nil {
			s.abortUpload(ctx, key, uploadID)
			return "", err
		}
		parts = append(parts, types.CompletedPart{ETag: resp.ETag, PartNumber: aws.Int32(int32(n))})
	}

	done, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
		IfNoneMatch:     ifNoneMatch,
	})
	if err != nil {
		s.abortUpload(ctx, key, uploadID)
		return "", err
	}
	return aws.ToString(done.ETag), nil
}

func (s *S3Storage) abortUpload(ctx context.Context, key string, uploadID *string) {
	_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
}

// isPreconditionFailed reports whether S3 refused a conditional write.
func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
		return true
	}
	var respErr interface{ HTTPStatusCode() int }
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusPreconditionFailed
}

// retryWithBackoff runs operation with exponential backoff. ErrObjectExists
// is final.
func (s *S3Storage) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil || errors.Is(lastErr, ErrObjectExists) {
			return lastErr
		}

		if attempt < s.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
