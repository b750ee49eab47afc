package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/feichai0017/pdf-voice/pkg/logger"
)

const (
	DefaultGoogleTTSEndpoint = "https://translate.google.com/translate_tts"
	// googleTTSChunkLength is the longest text the endpoint accepts per request.
	googleTTSChunkLength = 100
)

type GoogleTTSConfig struct {
	Endpoint          string
	Timeout           time.Duration
	RequestsPerMinute int
}

// GoogleTTSProvider fetches speech from the Google Translate TTS endpoint,
// one request per chunk, and appends the MP3 frames to a single file.
type GoogleTTSProvider struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logger.Logger
}

func NewGoogleTTSProvider(cfg GoogleTTSConfig, log logger.Logger) *GoogleTTSProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGoogleTTSEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}

	return &GoogleTTSProvider{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:     log,
	}
}

func (p *GoogleTTSProvider) Name() string { return "google-tts" }

func (p *GoogleTTSProvider) WriteMP3(ctx context.Context, text, languageCode, path string) error {
	chunks := ChunkWords(text, googleTTSChunkLength)
	if len(chunks) == 0 {
		return fmt.Errorf("no text to speak")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	for i, chunk := range chunks {
		if err := p.fetch(ctx, f, chunk, languageCode, i, len(chunks)); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return f.Close()
}

func (p *GoogleTTSProvider) fetch(ctx context.Context, w io.Writer, chunk, languageCode string, idx, total int) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("q", chunk)
	query.Set("tl", languageCode)
	query.Set("client", "tw-ob")
	query.Set("total", strconv.Itoa(total))
	query.Set("idx", strconv.Itoa(idx))
	query.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("empty audio response")
	}
	return nil
}

// ChunkWords splits text on whitespace into pieces of at most limit runes.
// Words longer than limit are cut.
func ChunkWords(text string, limit int) []string {
	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > limit {
			flush()
			cut := 0
			for i := range word {
				if cut == limit {
					chunks = append(chunks, word[:i])
					word = word[i:]
					break
				}
				cut++
			}
		}

		n := utf8.RuneCountInString(word)
		if size > 0 && size+1+n > limit {
			flush()
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(word)
		size += n
	}
	flush()
	return chunks
}
