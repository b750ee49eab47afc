package config

import (
	"sync"
)

var (
	s3Once   sync.Once
	s3Config *S3Config
)

type S3Config struct {
	BucketName string `env:"AWS_S3_BUCKET_NAME"`
	Region     string `env:"AWS_REGION" envDefault:"us-east-1"`
	Endpoint   string `env:"AWS_ENDPOINT"`
	AccessKey  string `env:"AWS_ACCESS_KEY"`
	SecretKey  string `env:"AWS_SECRET_KEY"`
}

func LoadS3Config(environ map[string]string) (*S3Config, error) {
	cfg, err := parse[S3Config](environ)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func GetS3Config() *S3Config {
	s3Once.Do(func() {
		s3Config = mustLoad(LoadS3Config)
	})
	return s3Config
}
