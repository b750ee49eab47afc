package pipeline

import (
	"context"

	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

// Checkpoints reported by Convert.
const (
	PercentExtracted   = 33
	PercentTranslated  = 66
	PercentSynthesized = 100
)

// Progress is one checkpoint. Stage is the stage that just finished.
type Progress struct {
	Stage   models.Stage
	Percent int
}

// ProgressReporter receives checkpoints. Errors are logged and ignored.
type ProgressReporter interface {
	Report(ctx context.Context, p Progress) error
}

type ReporterFunc func(ctx context.Context, p Progress) error

func (f ReporterFunc) Report(ctx context.Context, p Progress) error {
	return f(ctx, p)
}

// MultiReporter fans a checkpoint out to every reporter and returns the
// first error.
type MultiReporter []ProgressReporter

func (m MultiReporter) Report(ctx context.Context, p Progress) error {
	var first error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, p); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogReporter writes checkpoints to the logger carried by ctx.
type LogReporter struct {
	logger logger.ContextLogger
}

func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{logger: logger.NewContextLogger(log)}
}

func (r *LogReporter) Report(ctx context.Context, p Progress) error {
	r.logger.FromContext(ctx).Info("Conversion progress",
		logger.String("stage", string(p.Stage)),
		logger.Int("percent", p.Percent),
	)
	return nil
}
