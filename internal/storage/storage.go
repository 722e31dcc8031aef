// Package storage provides S3-compatible object storage for therapist profile images.
// Uploads go straight from the caller to the bucket through presigned URLs; the API
// never proxies image bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const signingRegion = "us-east-1"

// Service defines the object storage operations the API relies on.
type Service interface {
	// PresignUpload creates a time-limited URL the caller can PUT the object to.
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// ObjectURL is the public URL an uploaded object is served from.
	ObjectURL(key string) string

	// EnsureBucket creates the bucket if it doesn't exist.
	EnsureBucket(ctx context.Context) error

	Health(ctx context.Context) error
}

// Options mirror the S3_* environment variables.
type Options struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

func (o Options) validate() error {
	var missing []string
	if o.Endpoint == "" {
		missing = append(missing, "S3_ENDPOINT")
	}
	if o.AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY")
	}
	if o.SecretKey == "" {
		missing = append(missing, "S3_SECRET_KEY")
	}
	if o.Bucket == "" {
		missing = append(missing, "S3_BUCKET_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("storage: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

type service struct {
	client          *s3.Client
	publicPresigner *s3.PresignClient
	bucket          string
	publicBaseURL   string
	logger          *slog.Logger
}

// New creates a storage service for an S3-compatible endpoint such as MinIO.
// Presigned URLs are signed against PublicEndpoint when it differs from Endpoint so
// that browsers outside the cluster can use them.
func New(ctx context.Context, opts Options, logger *slog.Logger) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.PublicEndpoint == "" {
		opts.PublicEndpoint = opts.Endpoint
	}

	protocol := "http"
	if opts.UseSSL {
		protocol = "https"
	}
	internalURL := fmt.Sprintf("%s://%s", protocol, opts.Endpoint)
	publicURL := fmt.Sprintf("%s://%s", protocol, opts.PublicEndpoint)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(signingRegion),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing is required for MinIO
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(internalURL)
		o.UsePathStyle = true
	})

	publicPresigner := s3.NewPresignClient(client)
	if publicURL != internalURL {
		publicClient := s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(publicURL)
			o.UsePathStyle = true
		})
		publicPresigner = s3.NewPresignClient(publicClient)
	}

	logger.Info("object storage configured",
		"endpoint", opts.Endpoint,
		"public_endpoint", opts.PublicEndpoint,
		"bucket", opts.Bucket)

	s := &service{
		client:          client,
		publicPresigner: publicPresigner,
		bucket:          opts.Bucket,
		publicBaseURL:   publicURL,
		logger:          logger,
	}

	if err := s.EnsureBucket(ctx); err != nil {
		logger.Warn("failed to ensure bucket exists", "bucket", opts.Bucket, "error", err)
	}

	return s, nil
}

func (s *service) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	s.logger.Info("created bucket", "bucket", s.bucket)
	return nil
}

func (s *service) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	switch {
	case key == "":
		return "", errors.New("object key cannot be empty")
	case contentType == "":
		return "", errors.New("content type cannot be empty")
	case ttl <= 0:
		return "", errors.New("TTL must be positive")
	}

	req, err := s.publicPresigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for key %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *service) ObjectURL(key string) string {
	return ObjectURL(s.publicBaseURL, s.bucket, key)
}

func (s *service) Health(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}

// ObjectURL builds the path-style URL of key in bucket.
func ObjectURL(baseURL, bucket, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(bucket) + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
