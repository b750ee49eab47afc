package config

import (
	"fmt"
	"sync"
	"time"
)

var (
	queueOnce   sync.Once
	queueConfig *QueueConfig
)

type QueueConfig struct {
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	Concurrency int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
	MaxRetry    int           `env:"TASK_MAX_RETRY" envDefault:"2"`
	TaskTimeout time.Duration `env:"TASK_TIMEOUT" envDefault:"30m"`
	// Retention bounds how long finished results stay readable.
	Retention time.Duration `env:"RESULT_RETENTION" envDefault:"1h"`
	StatusTTL time.Duration `env:"STATUS_TTL" envDefault:"24h"`

	// MetricsAddr is where the worker serves /metrics. Empty disables it.
	MetricsAddr string `env:"WORKER_METRICS_ADDR" envDefault:":9091"`
}

func LoadQueueConfig(environ map[string]string) (*QueueConfig, error) {
	cfg, err := parse[QueueConfig](environ)
	if err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", cfg.Concurrency)
	}
	if cfg.MaxRetry < 0 {
		return nil, fmt.Errorf("TASK_MAX_RETRY must not be negative, got %d", cfg.MaxRetry)
	}
	return &cfg, nil
}

func GetQueueConfig() *QueueConfig {
	queueOnce.Do(func() {
		queueConfig = mustLoad(LoadQueueConfig)
	})
	return queueConfig
}
