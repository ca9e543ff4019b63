package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// EnsureBucket creates the configured bucket on an S3-compatible endpoint
// when it does not exist yet. It is a no-op against AWS (no endpoint).
func EnsureBucket(ctx context.Context, cfg S3Config) error {
	if cfg.Endpoint == "" {
		return nil
	}

	host, secure := splitEndpoint(cfg.Endpoint)
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", host).Msg("Created storage bucket")
	return nil
}

// splitEndpoint strips the scheme minio-go does not accept
func splitEndpoint(endpoint string) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), false
	default:
		return endpoint, false
	}
}
