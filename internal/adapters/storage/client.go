package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"marketplace_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// PresignedURLTTL is the default expiration time for presigned URLs (15 minutes).
	PresignedURLTTL = 15 * time.Minute
)

// MinIOService issues presigned download links for stored objects.
type MinIOService struct {
	client *minio.Client
	ttl    time.Duration
}

// NewMinIOService creates a new MinIO storage service.
func NewMinIOService(cfg config.MinIOConfig) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ttl := cfg.GetPresignTTL()
	if ttl <= 0 {
		ttl = PresignedURLTTL
	}

	return &MinIOService{client: client, ttl: ttl}, nil
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return nil
}

// GenerateDownloadURL creates a presigned URL for downloading an object.
func (s *MinIOService) GenerateDownloadURL(ctx context.Context, bucket, objectKey string) (string, error) {
	if err := ValidateObjectKey(objectKey); err != nil {
		return "", err
	}

	presignedURL, err := s.client.PresignedGetObject(ctx, bucket, objectKey, s.ttl, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return presignedURL.String(), nil
}
