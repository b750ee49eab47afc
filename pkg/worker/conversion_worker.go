package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/pdf-voice/internal/metrics"
	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/internal/pipeline"
	"github.com/feichai0017/pdf-voice/pkg/converters"
	"github.com/feichai0017/pdf-voice/pkg/logger"
	"github.com/feichai0017/pdf-voice/pkg/queue"
)

// TaskHandler runs one queued conversion.
type TaskHandler interface {
	HandleTask(ctx context.Context, task *queue.Task, reporters ...pipeline.ProgressReporter) (*models.ConversionOutcome, error)
}

type ConversionWorker struct {
	BaseWorker
	handler *ConversionHandler
}

func NewConversionWorker(redisOpt asynq.RedisConnOpt, cfg *Config, handler TaskHandler, statuses queue.StatusStore, log logger.Logger) *ConversionWorker {
	w := &ConversionWorker{
		BaseWorker: newBaseWorker(redisOpt, cfg, log),
		handler:    NewConversionHandler(handler, statuses, log),
	}

	// 注册任务处理器
	w.mux.Handle(queue.TaskTypeConversion, w.handler)
	return w
}

// ConversionHandler implements asynq.Handler for conversion tasks. It keeps
// the task status record current and writes the result through asynq.
type ConversionHandler struct {
	handler   TaskHandler
	statuses  queue.StatusStore
	converter converters.ResultConverter
	logger    logger.ContextLogger
}

func NewConversionHandler(handler TaskHandler, statuses queue.StatusStore, log logger.Logger) *ConversionHandler {
	return &ConversionHandler{
		handler:   handler,
		statuses:  statuses,
		converter: converters.NewJSONConverter(),
		logger:    logger.NewContextLogger(log),
	}
}

func (h *ConversionHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	task, err := queue.DecodeTask(t.Payload())
	if err != nil {
		h.logger.FromContext(ctx).Error("Invalid task payload", logger.Error(err))
		metrics.QueueTasksTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	ctx = logger.WithRequestID(ctx, task.ID)
	log := h.logger.FromContext(ctx)
	retried, _ := asynq.GetRetryCount(ctx)

	log.Info("Processing conversion task",
		logger.String("filename", task.Payload.FileName),
		logger.Int("retried", retried),
	)

	started := time.Now()
	status := &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    models.StatusRunning,
		Stage:     string(models.StageExtracting),
		FileName:  task.Payload.FileName,
		Retried:   retried,
		CreatedAt: task.CreatedAt,
	}
	h.save(ctx, status)

	outcome, err := h.handler.HandleTask(ctx, task, &statusReporter{handler: h, status: status})
	if err != nil {
		return h.attemptFailed(ctx, status, "", err)
	}

	h.writeResult(ctx, t, task, outcome, time.Since(started))

	if outcome.Succeeded() {
		now := time.Now()
		status.Status = models.StatusCompleted
		status.Stage = string(models.StageDone)
		status.Progress = 1.0
		status.FinishedAt = now
		h.save(ctx, status)
		metrics.QueueTasksTotal.WithLabelValues(string(models.StatusCompleted)).Inc()

		log.Info("Conversion task completed",
			logger.Int("audioBytes", outcome.Audio.Size()),
			logger.Duration("elapsed", time.Since(started)),
		)
		return nil
	}

	convErr := outcome.Error
	if convErr == nil {
		convErr = models.NewConversionError(models.ErrSynthesisFailed, models.StageSynthesizing, errors.New("no audio produced"))
	}
	status.Stage = string(convErr.Stage)
	if !convErr.Kind.Retryable() {
		h.finish(ctx, status, convErr.Kind, convErr.Message)
		return fmt.Errorf("%w: %w", convErr, asynq.SkipRetry)
	}
	return h.attemptFailed(ctx, status, convErr.Kind, convErr)
}

// attemptFailed records a failure that asynq may retry.
func (h *ConversionHandler) attemptFailed(ctx context.Context, status *queue.TaskStatus, kind models.ErrorKind, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		now := time.Now()
		status.Status = models.StatusCancelled
		status.FinishedAt = now
		h.save(ctx, status)
		metrics.QueueTasksTotal.WithLabelValues(string(models.StatusCancelled)).Inc()
		return fmt.Errorf("%w: %w", ctx.Err(), asynq.SkipRetry)
	}

	if lastAttempt(ctx) {
		h.finish(ctx, status, kind, err.Error())
		return err
	}

	status.Status = models.StatusRunning
	status.ErrorKind = kind
	status.Error = err.Error()
	h.save(ctx, status)
	metrics.QueueTasksTotal.WithLabelValues("retry").Inc()
	return err
}

func (h *ConversionHandler) finish(ctx context.Context, status *queue.TaskStatus, kind models.ErrorKind, msg string) {
	status.Status = models.StatusFailed
	status.ErrorKind = kind
	status.Error = msg
	status.FinishedAt = time.Now()
	h.save(ctx, status)
	metrics.QueueTasksTotal.WithLabelValues(string(models.StatusFailed)).Inc()

	h.logger.FromContext(ctx).Error("Conversion task failed",
		logger.String("errorKind", string(kind)),
		logger.String("error", msg),
	)
}

func (h *ConversionHandler) writeResult(ctx context.Context, t *asynq.Task, task *queue.Task, outcome *models.ConversionOutcome, elapsed time.Duration) {
	log := h.logger.FromContext(ctx)

	result, err := h.converter.Convert(task.ID, task.Payload.FileName, outcome, elapsed)
	if err != nil {
		log.Error("Failed to convert result", logger.Error(err))
		return
	}
	data, err := converters.Encode(result)
	if err != nil {
		log.Error("Failed to encode result", logger.Error(err))
		return
	}

	// 获取任务写入器
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	if _, err := rw.Write(data); err != nil {
		log.Error("Failed to write task result", logger.Error(err))
	}
}

func (h *ConversionHandler) save(ctx context.Context, status *queue.TaskStatus) {
	status.UpdatedAt = time.Now()
	// 任务取消后仍需写入最终状态
	if err := h.statuses.SaveStatus(context.WithoutCancel(ctx), status); err != nil {
		h.logger.FromContext(ctx).Error("Failed to save task status",
			logger.String("status", string(status.Status)),
			logger.Error(err),
		)
	}
}

func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

// statusReporter maps pipeline checkpoints onto the task status record.
type statusReporter struct {
	handler *ConversionHandler
	status  *queue.TaskStatus
}

func (r *statusReporter) Report(ctx context.Context, p pipeline.Progress) error {
	r.status.Stage = string(p.Stage)
	r.status.Progress = float64(p.Percent) / 100
	r.status.UpdatedAt = time.Now()
	r.handler.logger.FromContext(ctx).Debug("Task progress",
		logger.String("stage", r.status.Stage),
		logger.Float64("progress", r.status.Progress),
	)
	return r.handler.statuses.SaveStatus(ctx, r.status)
}
