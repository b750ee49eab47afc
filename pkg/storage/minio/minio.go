package minio

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cfg "github.com/feichai0017/pdf-voice/config"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

type MinioSource struct {
	client     *minio.Client
	bucketName string
	logger     logger.Logger
}

// Get implements Source.Get. The object is fetched on first read; a
// missing key is detected with a stat first.
func (m *MinioSource) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := m.Stat(ctx, key); err != nil {
		return nil, err
	}

	obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		m.logger.Error("Failed to get file from MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return obj, nil
}

// Stat implements Source.Stat
func (m *MinioSource) Stat(ctx context.Context, key string) (int64, error) {
	info, err := m.client.StatObject(ctx, m.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
			return 0, fmt.Errorf("failed to stat file: %w: %v", fs.ErrNotExist, err)
		}
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Size, nil
}

func NewMinioSource(ctx context.Context, minioConfig *cfg.MinioConfig, log logger.Logger) (*MinioSource, error) {
	client, err := minio.New(minioConfig.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioConfig.AccessKey, minioConfig.SecretKey, ""),
		Secure: minioConfig.UseSSL,
		Region: minioConfig.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, minioConfig.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", minioConfig.BucketName)
	}

	log.Info("MinIO source ready",
		logger.String("endpoint", minioConfig.Endpoint),
		logger.String("bucket", minioConfig.BucketName),
	)

	return &MinioSource{
		client:     client,
		bucketName: minioConfig.BucketName,
		logger:     log,
	}, nil
}
