package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	cfg "github.com/feichai0017/pdf-voice/config"
	"github.com/feichai0017/pdf-voice/pkg/logger"
	"github.com/feichai0017/pdf-voice/pkg/storage/minio"
	"github.com/feichai0017/pdf-voice/pkg/storage/s3"
)

// SourceType 定义文档来源类型
type SourceType string

const (
	SourceTypeS3    SourceType = "s3"
	SourceTypeMinio SourceType = "minio"
)

var (
	ErrTooLarge = errors.New("object exceeds size limit")
	// ErrDisabled is returned when no document source is configured.
	ErrDisabled = errors.New("document source is not configured")
)

// Source reads documents from object storage. It never writes.
type Source interface {
	// Get opens the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Stat returns the object size in bytes.
	Stat(ctx context.Context, key string) (int64, error)
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// ReadAll fetches key into memory, refusing objects larger than maxSize.
func ReadAll(ctx context.Context, src Source, key string, maxSize int64) ([]byte, error) {
	if src == nil {
		return nil, ErrDisabled
	}

	size, err := src.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, key, size)
	}

	body, err := src.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	limit := size + 1
	if maxSize > 0 {
		limit = maxSize + 1
	}
	data, err := io.ReadAll(io.LimitReader(body, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, key)
	}
	return data, nil
}

// NewSource 创建文档来源的工厂方法. An empty type disables object keys.
func NewSource(ctx context.Context, sourceType SourceType, log logger.Logger) (Source, error) {
	switch sourceType {
	case "":
		return nil, nil
	case SourceTypeS3:
		src, err := s3.NewS3Source(ctx, cfg.GetS3Config(), log)
		if err != nil {
			return nil, err
		}
		return src, nil
	case SourceTypeMinio:
		src, err := minio.NewMinioSource(ctx, cfg.GetMinioConfig(), log)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}
