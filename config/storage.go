package config

import (
	"fmt"
	"strings"
	"sync"
)

const (
	SourceNone  = ""
	SourceS3    = "s3"
	SourceMinio = "minio"
)

var (
	storageOnce   sync.Once
	storageConfig *StorageConfig
)

// StorageConfig selects where documents referenced by object key are read from.
type StorageConfig struct {
	Source string `env:"DOCUMENT_SOURCE"`
}

func LoadStorageConfig(environ map[string]string) (*StorageConfig, error) {
	cfg, err := parse[StorageConfig](environ)
	if err != nil {
		return nil, err
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	switch cfg.Source {
	case SourceNone, SourceS3, SourceMinio:
	default:
		return nil, fmt.Errorf("DOCUMENT_SOURCE must be s3, minio or empty, got %q", cfg.Source)
	}
	return &cfg, nil
}

func GetStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		storageConfig = mustLoad(LoadStorageConfig)
	})
	return storageConfig
}
