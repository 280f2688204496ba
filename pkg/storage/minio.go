package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/richxcame/trustx/pkg/logger"
	"go.uber.org/zap"
)

// MinIOConfig holds MinIO connection settings
type MinIOConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinIOStorage implements Storage on a MinIO (or any S3-compatible) server
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

var _ Storage = (*MinIOStorage)(nil)

// NewMinIOStorage connects to MinIO and creates the bucket when missing
func NewMinIOStorage(ctx context.Context, cfg MinIOConfig) (*MinIOStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage: minio requires STORAGE_ENDPOINT")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("storage: create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("created evidence bucket", zap.String("bucket", cfg.Bucket))
	}

	return &MinIOStorage{client: client, bucket: cfg.Bucket}, nil
}

// Upload stores an object
func (m *MinIOStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.WithContext(ctx).Error("evidence upload failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to upload to minio: %w", err)
	}

	return &UploadResult{
		Key:        key,
		URL:        fmt.Sprintf("%s/%s/%s", m.client.EndpointURL().String(), m.bucket, key),
		Size:       info.Size,
		MimeType:   contentType,
		UploadedAt: time.Now(),
	}, nil
}

// Delete removes an object
func (m *MinIOStorage) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete from minio: %w", err)
	}
	return nil
}
