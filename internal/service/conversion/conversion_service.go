package conversion

import (
	"context"
	"errors"

	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/internal/pipeline"
	"github.com/feichai0017/pdf-voice/internal/utils/validator"
	"github.com/feichai0017/pdf-voice/pkg/converters"
	"github.com/feichai0017/pdf-voice/pkg/queue"
)

type ConversionProcessor interface {
	// Convert runs the pipeline in the calling goroutine.
	Convert(ctx context.Context, in *Input, reporters ...pipeline.ProgressReporter) (*models.ConversionOutcome, error)
	Submit(ctx context.Context, in *Input) (*models.ProcessingTask, error)
	SubmitBatch(ctx context.Context, ins []*Input) ([]*models.ProcessingTask, error)
	GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error)
	GetResult(ctx context.Context, taskID string) (*converters.ConversionResult, error)
	CancelTask(ctx context.Context, taskID string) error
	HandleTask(ctx context.Context, task *queue.Task, reporters ...pipeline.ProgressReporter) (*models.ConversionOutcome, error)
	Inspect(ctx context.Context, in *Input) (*models.DocumentMetadata, error)
	Languages() []string
	DefaultLanguage() string
	Backend() string
}

// Input is one document plus the conversion request. Exactly one of Data
// and ObjectKey is set.
type Input struct {
	FileName  string
	Data      []byte
	ObjectKey string
	Request   pipeline.Request
	Priority  int
}

var (
	ErrNoDocument       = errors.New("no document data or object key provided")
	ErrQueueUnavailable = errors.New("async conversion is not configured")
	ErrUnreadable       = errors.New("document is not a readable PDF")
)

// ValidationError carries the failed checks of an uploaded document.
type ValidationError struct {
	Result *validator.ValidationResult
}

func (e *ValidationError) Error() string {
	return "document validation failed: " + e.Result.Error()
}
