// Package speech turns text into MP3 audio with either a neural inference
// server or a file based fallback provider.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

// ErrSynthesisFailed wraps every backend failure.
var ErrSynthesisFailed = errors.New("speech synthesis failed")

type BackendKind string

const (
	BackendNeural   BackendKind = "neural"
	BackendFallback BackendKind = "fallback"
)

// Backend produces MP3 bytes for a text in the given language.
type Backend interface {
	Kind() BackendKind
	Synthesize(ctx context.Context, text, languageCode string) ([]byte, error)
}

// Prober reports whether a hardware accelerator can be used.
type Prober interface {
	Available(ctx context.Context) bool
}

// Synthesizer owns the backend chosen at construction. It is safe for
// concurrent use as long as the backend is.
type Synthesizer struct {
	backend Backend
	logger  logger.Logger
}

// NewSynthesizer probes once and keeps neural when an accelerator is
// available, fallback otherwise. neural may be nil, in which case fallback
// is always used.
func NewSynthesizer(ctx context.Context, probe Prober, neural, fallback Backend, log logger.Logger) (*Synthesizer, error) {
	if fallback == nil && neural == nil {
		return nil, fmt.Errorf("no speech backend configured")
	}

	backend := fallback
	if neural != nil && (fallback == nil || (probe != nil && probe.Available(ctx))) {
		backend = neural
	}

	log.Info("Speech backend selected",
		logger.String("backend", string(backend.Kind())),
	)
	return &Synthesizer{backend: backend, logger: log}, nil
}

// NewSynthesizerWithBackend skips probing.
func NewSynthesizerWithBackend(backend Backend, log logger.Logger) *Synthesizer {
	return &Synthesizer{backend: backend, logger: log}
}

func (s *Synthesizer) Backend() BackendKind {
	return s.backend.Kind()
}

// Synthesize returns an MP3 artifact. Blank text yields an empty artifact
// without calling the backend.
func (s *Synthesizer) Synthesize(ctx context.Context, text, languageCode string) (*models.AudioArtifact, error) {
	if strings.TrimSpace(text) == "" {
		return models.NewMP3Artifact([]byte{}), nil
	}

	start := time.Now()
	data, err := s.backend.Synthesize(ctx, text, languageCode)
	if err != nil {
		s.logger.Error("Speech synthesis failed",
			logger.String("backend", string(s.backend.Kind())),
			logger.String("language", languageCode),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %s backend: %v", ErrSynthesisFailed, s.backend.Kind(), err)
	}
	if !IsMP3(data) {
		return nil, fmt.Errorf("%w: %s backend returned %d bytes that are not MP3", ErrSynthesisFailed, s.backend.Kind(), len(data))
	}

	s.logger.Info("Speech synthesized",
		logger.String("backend", string(s.backend.Kind())),
		logger.String("language", languageCode),
		logger.String("size", humanize.Bytes(uint64(len(data)))),
		logger.Duration("elapsed", time.Since(start)),
	)
	return models.NewMP3Artifact(data), nil
}
