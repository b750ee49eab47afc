package config

import (
	"fmt"
	"sync"
	"time"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig
)

type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	GinMode         string        `env:"GIN_MODE" envDefault:"release"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10m"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"52428800"`
	MaxPages      int   `env:"MAX_PAGES" envDefault:"1000"`
	MaxBatchFiles int   `env:"MAX_BATCH_FILES" envDefault:"20"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogEncoding string `env:"LOG_ENCODING" envDefault:"json"`
	LogFile     string `env:"LOG_FILE"`
}

// LogOutputs returns the zap output paths.
func (c *ServerConfig) LogOutputs() []string {
	if c.LogFile == "" {
		return []string{"stdout"}
	}
	return []string{"stdout", c.LogFile}
}

func LoadServerConfig(environ map[string]string) (*ServerConfig, error) {
	cfg, err := parse[ServerConfig](environ)
	if err != nil {
		return nil, err
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", cfg.MaxUploadSize)
	}
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("MAX_PAGES must be positive, got %d", cfg.MaxPages)
	}
	return &cfg, nil
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		serverConfig = mustLoad(LoadServerConfig)
	})
	return serverConfig
}
