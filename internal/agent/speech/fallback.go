package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/feichai0017/pdf-voice/pkg/logger"
)

const outputFileName = "output.mp3"

// FileProvider writes MP3 audio for text into path.
type FileProvider interface {
	Name() string
	WriteMP3(ctx context.Context, text, languageCode, path string) error
}

// FallbackBackend runs a FileProvider inside a private temporary directory
// and reads the audio back into memory.
type FallbackBackend struct {
	provider FileProvider
	tempDir  string
	logger   logger.Logger
}

// NewFallbackBackend uses tempDir as the parent for per call directories;
// empty means os.TempDir().
func NewFallbackBackend(provider FileProvider, tempDir string, log logger.Logger) *FallbackBackend {
	return &FallbackBackend{provider: provider, tempDir: tempDir, logger: log}
}

func (b *FallbackBackend) Kind() BackendKind { return BackendFallback }

func (b *FallbackBackend) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	dir, err := os.MkdirTemp(b.tempDir, "pdfvoice-tts-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			b.logger.Warn("Failed to remove temp directory",
				logger.String("dir", dir),
				logger.Error(err),
			)
		}
	}()

	path := filepath.Join(dir, outputFileName)
	if err := b.provider.WriteMP3(ctx, text, languageCode, path); err != nil {
		return nil, fmt.Errorf("%s provider: %w", b.provider.Name(), err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider output: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s provider produced no audio", b.provider.Name())
	}

	b.logger.Debug("Fallback synthesis complete",
		logger.String("provider", b.provider.Name()),
		logger.String("language", languageCode),
		logger.Int("bytes", len(data)),
	)
	return data, nil
}
