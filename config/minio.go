package config

import (
	"sync"
)

var (
	minioOnce   sync.Once
	minioConfig *MinioConfig
)

type MinioConfig struct {
	AccessKey  string `env:"MINIO_ACCESS_KEY"`
	SecretKey  string `env:"MINIO_SECRET_KEY"`
	Endpoint   string `env:"MINIO_ENDPOINT"`
	UseSSL     bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	Region     string `env:"MINIO_REGION"`
	BucketName string `env:"MINIO_BUCKET_NAME"`
}

func LoadMinioConfig(environ map[string]string) (*MinioConfig, error) {
	cfg, err := parse[MinioConfig](environ)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func GetMinioConfig() *MinioConfig {
	minioOnce.Do(func() {
		minioConfig = mustLoad(LoadMinioConfig)
	})
	return minioConfig
}
