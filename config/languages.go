package config

import (
	"sync"
)

var (
	languagesOnce   sync.Once
	languagesConfig *LanguagesConfig
)

type LanguagesConfig struct {
	// File is an optional YAML table replacing the built-in one.
	File    string `env:"LANGUAGES_FILE"`
	Default string `env:"DEFAULT_LANGUAGE" envDefault:"English"`
}

func LoadLanguagesConfig(environ map[string]string) (*LanguagesConfig, error) {
	cfg, err := parse[LanguagesConfig](environ)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func GetLanguagesConfig() *LanguagesConfig {
	languagesOnce.Do(func() {
		languagesConfig = mustLoad(LoadLanguagesConfig)
	})
	return languagesConfig
}
