package config

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	FallbackGoogle = "google"
	FallbackCLI    = "cli"
)

var (
	speechOnce   sync.Once
	speechConfig *SpeechConfig
)

type SpeechConfig struct {
	// Accelerator is auto, on or off.
	Accelerator string `env:"TTS_ACCELERATOR" envDefault:"auto"`

	NeuralEndpoint string        `env:"TTS_NEURAL_ENDPOINT" envDefault:"http://localhost:8880"`
	NeuralModel    string        `env:"TTS_NEURAL_MODEL" envDefault:"kokoro"`
	NeuralVoice    string        `env:"TTS_NEURAL_VOICE" envDefault:"af_heart"`
	NeuralTimeout  time.Duration `env:"TTS_NEURAL_TIMEOUT" envDefault:"5m"`

	FallbackProvider  string        `env:"TTS_FALLBACK_PROVIDER" envDefault:"google"`
	GoogleEndpoint    string        `env:"TTS_GOOGLE_ENDPOINT"`
	RequestsPerMinute int           `env:"TTS_REQUESTS_PER_MINUTE" envDefault:"120"`
	CLICommand        string        `env:"TTS_CLI_COMMAND" envDefault:"gtts-cli"`
	FallbackTimeout   time.Duration `env:"TTS_FALLBACK_TIMEOUT" envDefault:"2m"`
	TempDir           string        `env:"TTS_TEMP_DIR"`
}

func LoadSpeechConfig(environ map[string]string) (*SpeechConfig, error) {
	cfg, err := parse[SpeechConfig](environ)
	if err != nil {
		return nil, err
	}

	cfg.Accelerator = strings.ToLower(strings.TrimSpace(cfg.Accelerator))
	switch cfg.Accelerator {
	case "auto", "on", "off":
	default:
		return nil, fmt.Errorf("TTS_ACCELERATOR must be auto, on or off, got %q", cfg.Accelerator)
	}

	cfg.FallbackProvider = strings.ToLower(strings.TrimSpace(cfg.FallbackProvider))
	switch cfg.FallbackProvider {
	case FallbackGoogle, FallbackCLI:
	default:
		return nil, fmt.Errorf("TTS_FALLBACK_PROVIDER must be google or cli, got %q", cfg.FallbackProvider)
	}
	return &cfg, nil
}

func GetSpeechConfig() *SpeechConfig {
	speechOnce.Do(func() {
		speechConfig = mustLoad(LoadSpeechConfig)
	})
	return speechConfig
}
