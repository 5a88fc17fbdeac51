// Package storage publishes exported flat files to S3-compatible object
// storage (AWS S3, MinIO, RustFS, ...).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/logtower/backend/internal/infrastructure/config"
	"github.com/logtower/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// S3Publisher uploads files under a key prefix of one bucket
type S3Publisher struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3PublisherOption is a functional option for configuring S3Publisher
type S3PublisherOption func(*S3Publisher)

// WithLogger sets a custom logger for S3Publisher
func WithLogger(logger *zap.Logger) S3PublisherOption {
	return func(p *S3Publisher) {
		p.logger = logger
	}
}

// NewS3Publisher creates a publisher from configuration. Static credentials
// are used when an access key is configured; otherwise the default AWS
// credential chain applies. An empty endpoint targets AWS itself.
func NewS3Publisher(ctx context.Context, cfg *config.StorageConfig, opts ...S3PublisherOption) (*S3Publisher, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, errors.New("storage access key and secret key must be set together")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	p := &S3Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("s3")
	return p, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (p *S3Publisher) EnsureBucket(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	p.logger.Info("Creating storage bucket", zap.String("bucket", p.bucket))
	_, err = p.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Key returns the object key a local file is published under
func (p *S3Publisher) Key(localPath string) string {
	return path.Join(p.prefix, filepath.Base(localPath))
}

// Publish uploads a local file and returns its object key
func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	key := p.Key(localPath)
	if err := p.Upload(ctx, key, f, "text/plain; charset=utf-8"); err != nil {
		return "", err
	}
	logger.L(ctx, p.logger).Info("published",
		zap.String("bucket", p.bucket),
		zap.String("key", key),
		logger.File(localPath),
	)
	return key, nil
}

// Upload writes body to key
func (p *S3Publisher) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Bucket returns the bucket name
func (p *S3Publisher) Bucket() string {
	return p.bucket
}
