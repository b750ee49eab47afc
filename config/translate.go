package config

import (
	"sync"
	"time"
)

var (
	translateOnce   sync.Once
	translateConfig *TranslateConfig
)

type TranslateConfig struct {
	Endpoint          string        `env:"TRANSLATE_ENDPOINT"`
	Timeout           time.Duration `env:"TRANSLATE_TIMEOUT" envDefault:"30s"`
	RequestsPerMinute int           `env:"TRANSLATE_REQUESTS_PER_MINUTE" envDefault:"60"`
	ChunkLength       int           `env:"TRANSLATE_CHUNK_LENGTH" envDefault:"5000"`
}

func LoadTranslateConfig(environ map[string]string) (*TranslateConfig, error) {
	cfg, err := parse[TranslateConfig](environ)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func GetTranslateConfig() *TranslateConfig {
	translateOnce.Do(func() {
		translateConfig = mustLoad(LoadTranslateConfig)
	})
	return translateConfig
}
