package artifact

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/voicefusion-labs/voicefusion-core/internal/config"
)

type minioStore struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
	log       *slog.Logger
}

// NewMinioStore connects to an S3-compatible object store and ensures the
// configured bucket exists.
func NewMinioStore(ctx context.Context, cfg config.ArtifactsConfig, log *slog.Logger) (Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		log.Info("created artifact bucket", slog.String("bucket", cfg.Bucket))
	}

	expiry := time.Duration(cfg.URLExpiryMinute) * time.Minute
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &minioStore{
		client:    client,
		bucket:    cfg.Bucket,
		urlExpiry: expiry,
		log:       log.With(slog.String("component", "artifact-store")),
	}, nil
}

func (s *minioStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload artifact %q: %w", name, err)
	}

	url, err := s.client.PresignedGetObject(ctx, s.bucket, name, s.urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign artifact %q: %w", name, err)
	}
	s.log.Debug("stored artifact", slog.String("name", name), slog.Int("bytes", len(data)))
	return url.String(), nil
}
