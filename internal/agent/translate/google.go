package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/feichai0017/pdf-voice/pkg/logger"
)

const (
	DefaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"
	// MaxChunkLength is the longest text sent in one request.
	MaxChunkLength = 5000
)

type GoogleConfig struct {
	Endpoint          string
	Timeout           time.Duration
	RequestsPerMinute int
	ChunkLength       int
}

// GoogleTranslator talks to the public Google Translate endpoint used by the
// browser widget. No API key is needed.
type GoogleTranslator struct {
	endpoint    string
	chunkLength int
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      logger.Logger
}

func NewGoogleTranslator(cfg GoogleConfig, log logger.Logger) *GoogleTranslator {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGoogleEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.ChunkLength <= 0 || cfg.ChunkLength > MaxChunkLength {
		cfg.ChunkLength = MaxChunkLength
	}

	return &GoogleTranslator{
		endpoint:    cfg.Endpoint,
		chunkLength: cfg.ChunkLength,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:      log,
	}
}

// Translate translates text chunk by chunk and joins the results in order.
func (t *GoogleTranslator) Translate(ctx context.Context, text, targetCode string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	chunks := SplitChunks(text, t.chunkLength)
	t.logger.Debug("Translating text",
		logger.String("target", targetCode),
		logger.Int("length", len(text)),
		logger.Int("chunks", len(chunks)),
	)

	var b strings.Builder
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			b.WriteString(chunk)
			continue
		}
		translated, err := t.translateChunk(ctx, chunk, targetCode)
		if err != nil {
			t.logger.Error("Translation request failed",
				logger.String("target", targetCode),
				logger.Int("chunk", i),
				logger.Error(err),
			)
			return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
		}
		b.WriteString(translated)
	}
	return b.String(), nil
}

func (t *GoogleTranslator) translateChunk(ctx context.Context, chunk, targetCode string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", "auto")
	query.Set("tl", targetCode)
	query.Set("dt", "t")
	query.Set("q", chunk)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var payload []interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return parseSegments(payload)
}

// parseSegments reads [[["translated","source",...],...],...].
func parseSegments(payload []interface{}) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty response")
	}
	segments, ok := payload[0].([]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected response shape")
	}

	var b strings.Builder
	for _, s := range segments {
		segment, ok := s.([]interface{})
		if !ok || len(segment) == 0 {
			continue
		}
		if text, ok := segment[0].(string); ok {
			b.WriteString(text)
		}
	}
	return b.String(), nil
}
