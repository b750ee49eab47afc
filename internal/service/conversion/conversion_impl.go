package conversion

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/pdf-voice/internal/agent/document/pdf"
	"github.com/feichai0017/pdf-voice/internal/agent/speech"
	"github.com/feichai0017/pdf-voice/internal/language"
	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/internal/pipeline"
	"github.com/feichai0017/pdf-voice/internal/utils/validator"
	"github.com/feichai0017/pdf-voice/pkg/converters"
	"github.com/feichai0017/pdf-voice/pkg/logger"
	"github.com/feichai0017/pdf-voice/pkg/queue"
	"github.com/feichai0017/pdf-voice/pkg/storage"
)

// Converter is the part of *pipeline.Pipeline the service drives.
type Converter interface {
	ConvertBytes(ctx context.Context, data []byte, req pipeline.Request, reporters ...pipeline.ProgressReporter) *models.ConversionOutcome
	Languages() *language.Table
	Backend() speech.BackendKind
}

var _ ConversionProcessor = (*ConversionService)(nil)

type ConversionService struct {
	converter Converter
	queue     queue.Queue
	source    storage.Source
	validator *validator.DocumentValidator
	logger    logger.ContextLogger
	config    *ServiceConfig
}

type ServiceConfig struct {
	MaxFileSize     int64
	MaxPages        int
	MaxConcurrent   int
	DefaultPriority int
}

// NewService wires the service. q and source may be nil, which disables
// async submission and object keys respectively.
func NewService(
	converter Converter,
	q queue.Queue,
	source storage.Source,
	log logger.Logger,
	cfg *ServiceConfig,
) *ConversionService {
	if cfg == nil {
		cfg = &ServiceConfig{
			MaxFileSize:     50 * 1024 * 1024, // 50MB
			MaxPages:        1000,
			MaxConcurrent:   5,
			DefaultPriority: 2,
		}
	}

	return &ConversionService{
		converter: converter,
		queue:     q,
		source:    source,
		validator: validator.NewDocumentValidator(log.Named("validator"), &validator.ValidatorConfig{
			MaxFileSize:  cfg.MaxFileSize,
			MaxPageCount: cfg.MaxPages,
		}),
		logger: logger.NewContextLogger(log),
		config: cfg,
	}
}

// Convert 同步转换
func (s *ConversionService) Convert(ctx context.Context, in *Input, reporters ...pipeline.ProgressReporter) (*models.ConversionOutcome, error) {
	log := s.logger.FromContext(ctx)

	data, err := s.load(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in, data); err != nil {
		log.Warn("Document validation failed",
			logger.String("filename", displayName(in)),
			logger.Error(err),
		)
		return nil, err
	}

	log.Info("Starting conversion",
		logger.String("filename", displayName(in)),
		logger.Int("size", len(data)),
		logger.String("targetLanguage", in.Request.TargetLanguage),
	)
	return s.converter.ConvertBytes(ctx, data, in.Request, reporters...), nil
}

// Submit 将转换任务加入队列
func (s *ConversionService) Submit(ctx context.Context, in *Input) (*models.ProcessingTask, error) {
	log := s.logger.FromContext(ctx)
	if s.queue == nil {
		return nil, ErrQueueUnavailable
	}

	payload := queue.ConversionPayload{
		FileName:       displayName(in),
		StartPage:      in.Request.StartPage,
		EndPage:        in.Request.EndPage,
		TargetLanguage: in.Request.TargetLanguage,
	}

	switch {
	case len(in.Data) > 0:
		if err := s.validate(in, in.Data); err != nil {
			return nil, err
		}
		payload.Document = in.Data
	case in.ObjectKey != "":
		// 只检查对象是否存在，由 worker 读取
		if s.source == nil {
			return nil, storage.ErrDisabled
		}
		size, err := s.source.Stat(ctx, in.ObjectKey)
		if err != nil {
			return nil, err
		}
		if size > s.config.MaxFileSize {
			return nil, fmt.Errorf("%w: %s is %d bytes", storage.ErrTooLarge, in.ObjectKey, size)
		}
		log.Info("Document found in source",
			logger.String("objectKey", in.ObjectKey),
			logger.Int64("size", size),
		)
		payload.ObjectKey = in.ObjectKey
	default:
		return nil, ErrNoDocument
	}

	priority := in.Priority
	if priority == 0 {
		priority = s.config.DefaultPriority
	}
	task := queue.NewConversionTask(payload, priority)

	if err := s.queue.Enqueue(ctx, task); err != nil {
		log.Error("Failed to enqueue task",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Info("Conversion task created",
		logger.String("taskId", task.ID),
		logger.String("filename", payload.FileName),
	)

	return &models.ProcessingTask{
		ID:        task.ID,
		Status:    models.StatusPending,
		Type:      task.Type,
		Priority:  task.Priority,
		Stage:     string(models.StageIdle),
		Metadata:  task.Metadata,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.CreatedAt,
	}, nil
}

// SubmitBatch 批量提交. The returned slice keeps input order; entries
// that failed are nil.
func (s *ConversionService) SubmitBatch(ctx context.Context, ins []*Input) ([]*models.ProcessingTask, error) {
	tasks := make([]*models.ProcessingTask, len(ins))

	// 使用 errgroup 来管理并发和错误
	g, gctx := errgroup.WithContext(ctx)
	if s.config.MaxConcurrent > 0 {
		g.SetLimit(s.config.MaxConcurrent)
	}

	for i, in := range ins {
		g.Go(func() error {
			task, err := s.Submit(gctx, in)
			if err != nil {
				return fmt.Errorf("failed to submit %s: %w", displayName(in), err)
			}
			tasks[i] = task
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return tasks, err // 返回已提交的任务和错误
	}
	return tasks, nil
}

// HandleTask 执行队列中的转换任务. A returned error means the attempt
// should be retried; conversion failures are reported in the outcome.
func (s *ConversionService) HandleTask(ctx context.Context, task *queue.Task, reporters ...pipeline.ProgressReporter) (*models.ConversionOutcome, error) {
	if task == nil {
		return nil, fmt.Errorf("invalid task: missing required data")
	}
	log := s.logger.FromContext(ctx).With(logger.String("taskId", task.ID))

	in := &Input{
		FileName:  task.Payload.FileName,
		Data:      task.Payload.Document,
		ObjectKey: task.Payload.ObjectKey,
		Request: pipeline.Request{
			StartPage:      task.Payload.StartPage,
			EndPage:        task.Payload.EndPage,
			TargetLanguage: task.Payload.TargetLanguage,
		},
	}

	data, err := s.load(ctx, in)
	if err != nil {
		if permanentLoadError(err) {
			log.Warn("Document not available", logger.Error(err))
			return invalidDocument(err), nil
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if err := s.validate(in, data); err != nil {
		log.Warn("Document validation failed", logger.Error(err))
		return invalidDocument(err), nil
	}

	log.Info("Processing conversion task", logger.String("filename", in.FileName))
	return s.converter.ConvertBytes(ctx, data, in.Request, reporters...), nil
}

// GetProcessingStatus 获取处理状态
func (s *ConversionService) GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error) {
	if s.queue == nil {
		return nil, ErrQueueUnavailable
	}

	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	metadata := make(map[string]string)
	if status.FileName != "" {
		metadata["fileName"] = status.FileName
	}
	if status.Retried > 0 {
		metadata["retried"] = fmt.Sprintf("%d", status.Retried)
	}

	updated := status.UpdatedAt
	if !status.FinishedAt.IsZero() {
		updated = status.FinishedAt
	}

	return &models.ProcessingTask{
		ID:        status.TaskID,
		Status:    status.Status,
		Type:      queue.TaskTypeConversion,
		Progress:  status.Progress,
		Stage:     status.Stage,
		ErrorKind: status.ErrorKind,
		Error:     status.Error,
		Metadata:  metadata,
		CreatedAt: status.CreatedAt,
		UpdatedAt: updated,
	}, nil
}

// GetResult 获取转换结果
func (s *ConversionService) GetResult(ctx context.Context, taskID string) (*converters.ConversionResult, error) {
	if s.queue == nil {
		return nil, ErrQueueUnavailable
	}

	data, err := s.queue.GetResult(ctx, taskID)
	if err != nil {
		return nil, err
	}
	result, err := converters.Decode(data)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelTask 取消任务
func (s *ConversionService) CancelTask(ctx context.Context, taskID string) error {
	if s.queue == nil {
		return ErrQueueUnavailable
	}
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}

	s.logger.FromContext(ctx).Info("Task cancelled", logger.String("taskId", taskID))
	return nil
}

// Inspect reads document metadata without converting.
func (s *ConversionService) Inspect(ctx context.Context, in *Input) (*models.DocumentMetadata, error) {
	data, err := s.load(ctx, in)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.config.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", storage.ErrTooLarge, len(data))
	}

	doc, err := pdf.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	metadata := doc.Metadata()
	return &metadata, nil
}

func (s *ConversionService) Languages() []string {
	return s.converter.Languages().Names()
}

func (s *ConversionService) DefaultLanguage() string {
	return s.converter.Languages().Default().Name
}

func (s *ConversionService) Backend() string {
	return string(s.converter.Backend())
}

func (s *ConversionService) load(ctx context.Context, in *Input) ([]byte, error) {
	switch {
	case in == nil:
		return nil, ErrNoDocument
	case len(in.Data) > 0:
		return in.Data, nil
	case in.ObjectKey != "":
		started := time.Now()
		data, err := storage.ReadAll(ctx, s.source, in.ObjectKey, s.config.MaxFileSize)
		if err != nil {
			return nil, err
		}
		s.logger.FromContext(ctx).Debug("Document fetched",
			logger.String("key", in.ObjectKey),
			logger.Int("size", len(data)),
			logger.Duration("elapsed", time.Since(started)),
		)
		return data, nil
	default:
		return nil, ErrNoDocument
	}
}

func (s *ConversionService) validate(in *Input, data []byte) error {
	result := s.validator.Validate(displayName(in), data)
	if !result.IsValid {
		return &ValidationError{Result: result}
	}
	return nil
}

func displayName(in *Input) string {
	if in.FileName != "" {
		return in.FileName
	}
	if in.ObjectKey != "" {
		return path.Base(in.ObjectKey)
	}
	return ""
}

func permanentLoadError(err error) bool {
	return storage.IsNotFound(err) ||
		errors.Is(err, storage.ErrTooLarge) ||
		errors.Is(err, storage.ErrDisabled) ||
		errors.Is(err, ErrNoDocument)
}

func invalidDocument(err error) *models.ConversionOutcome {
	return &models.ConversionOutcome{
		Error: models.NewConversionError(models.ErrInvalidDocument, models.StageExtracting, err),
	}
}
