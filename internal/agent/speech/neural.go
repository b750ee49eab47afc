package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/feichai0017/pdf-voice/pkg/logger"
)

const (
	DefaultNeuralEndpoint = "http://localhost:8880"
	DefaultNeuralModel    = "kokoro"
	DefaultNeuralVoice    = "af_heart"

	maxAudioSize = 200 << 20
)

type NeuralConfig struct {
	Endpoint string
	Model    string
	Voice    string
	Timeout  time.Duration
}

// NeuralBackend calls a local inference server that exposes the OpenAI
// compatible /v1/audio/speech route.
type NeuralBackend struct {
	endpoint   string
	model      string
	voice      string
	httpClient *http.Client
	logger     logger.Logger
}

type speechRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input"`
	Voice  string `json:"voice"`
	Format string `json:"response_format"`
}

func NewNeuralBackend(cfg NeuralConfig, log logger.Logger) *NeuralBackend {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultNeuralEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultNeuralModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultNeuralVoice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	return &NeuralBackend{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		voice:      cfg.Voice,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log,
	}
}

func (b *NeuralBackend) Kind() BackendKind { return BackendNeural }

// Synthesize sends the raw text. The model speaks with its configured voice,
// so the language code is only recorded.
func (b *NeuralBackend) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	b.logger.Debug("Neural synthesis request",
		logger.String("language", languageCode),
		logger.String("voice", b.voice),
		logger.Int("length", len(text)),
	)

	body, err := json.Marshal(speechRequest{
		Model:  b.model,
		Input:  text,
		Voice:  b.voice,
		Format: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(msg))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return data, nil
}

// Ping checks that the inference server answers.
func (b *NeuralBackend) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/v1/models", nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}
