package worker

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-voice/internal/metrics"
	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/internal/pipeline"
	"github.com/feichai0017/pdf-voice/pkg/logger"
	"github.com/feichai0017/pdf-voice/pkg/queue"
)

type recordingStore struct {
	mu       sync.Mutex
	statuses []queue.TaskStatus
}

func (s *recordingStore) SaveStatus(ctx context.Context, status *queue.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, *status)
	return nil
}

func (s *recordingStore) last() queue.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[len(s.statuses)-1]
}

type fakeHandler struct {
	outcome *models.ConversionOutcome
	err     error
	cancel  context.CancelFunc
}

func (f *fakeHandler) HandleTask(ctx context.Context, task *queue.Task, reporters ...pipeline.ProgressReporter) (*models.ConversionOutcome, error) {
	for _, percent := range []int{pipeline.PercentExtracted, pipeline.PercentTranslated, pipeline.PercentSynthesized} {
		if f.outcome != nil && f.outcome.Error != nil && percent > pipeline.PercentExtracted {
			break
		}
		for _, r := range reporters {
			_ = r.Report(ctx, pipeline.Progress{Stage: models.StageExtracting, Percent: percent})
		}
	}
	if f.cancel != nil {
		f.cancel()
	}
	return f.outcome, f.err
}

func newAsynqTask(t *testing.T) *asynq.Task {
	t.Helper()
	task := queue.NewConversionTask(queue.ConversionPayload{
		FileName: "a.pdf",
		Document: []byte("%PDF-1.4"),
	}, 2)
	data, err := json.Marshal(task)
	require.NoError(t, err)
	return asynq.NewTask(queue.TaskTypeConversion, data)
}

func successOutcome() *models.ConversionOutcome {
	return &models.ConversionOutcome{
		Text:      "hello",
		Audio:     models.NewMP3Artifact([]byte{0xFF, 0xFB}),
		Pages:     models.PageSpan{Start: 1, End: 1},
		PageCount: 1,
	}
}

func failedOutcome(kind models.ErrorKind, stage models.Stage) *models.ConversionOutcome {
	return &models.ConversionOutcome{
		Text:  "hello",
		Error: models.NewConversionError(kind, stage, errors.New("boom")),
	}
}

func TestProcessTask_Success(t *testing.T) {
	store := &recordingStore{}
	log := logger.NewTestLogger()
	h := NewConversionHandler(&fakeHandler{outcome: successOutcome()}, store, log)

	before := testutil.ToFloat64(metrics.QueueTasksTotal.WithLabelValues("completed"))
	require.NoError(t, h.ProcessTask(context.Background(), newAsynqTask(t)))

	require.Len(t, store.statuses, 5)
	assert.Equal(t, models.StatusRunning, store.statuses[0].Status)
	assert.Equal(t, 0.0, store.statuses[0].Progress)
	assert.Equal(t, 0.33, store.statuses[1].Progress)
	assert.Equal(t, 0.66, store.statuses[2].Progress)
	assert.Equal(t, 1.0, store.statuses[3].Progress)

	final := store.last()
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, string(models.StageDone), final.Stage)
	assert.Equal(t, "a.pdf", final.FileName)
	assert.False(t, final.FinishedAt.IsZero())

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.QueueTasksTotal.WithLabelValues("completed")))
	assert.True(t, log.HasMessage("INFO", "Conversion task completed"))

	var progress []float64
	for _, e := range log.GetEntries() {
		if e.Message != "Task progress" {
			continue
		}
		for _, f := range e.Fields {
			if f.Key == "progress" {
				progress = append(progress, math.Float64frombits(uint64(f.Integer)))
			}
		}
	}
	assert.Equal(t, []float64{0.33, 0.66, 1.0}, progress)
}

func TestProcessTask_NonRetryableFailure(t *testing.T) {
	store := &recordingStore{}
	h := NewConversionHandler(&fakeHandler{outcome: failedOutcome(models.ErrUnknownLanguage, models.StageTranslating)}, store, logger.NewNop())

	err := h.ProcessTask(context.Background(), newAsynqTask(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	var convErr *models.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, models.ErrUnknownLanguage, convErr.Kind)

	final := store.last()
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Equal(t, models.ErrUnknownLanguage, final.ErrorKind)
	assert.Equal(t, string(models.StageTranslating), final.Stage)
	assert.Equal(t, "boom", final.Error)
	assert.Equal(t, 0.33, final.Progress)
}

func TestProcessTask_RetryableFailureOnLastAttempt(t *testing.T) {
	store := &recordingStore{}
	h := NewConversionHandler(&fakeHandler{outcome: failedOutcome(models.ErrSynthesisFailed, models.StageSynthesizing)}, store, logger.NewNop())

	err := h.ProcessTask(context.Background(), newAsynqTask(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	final := store.last()
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Equal(t, models.ErrSynthesisFailed, final.ErrorKind)
}

func TestProcessTask_HandlerError(t *testing.T) {
	store := &recordingStore{}
	h := NewConversionHandler(&fakeHandler{err: errors.New("storage unavailable")}, store, logger.NewNop())

	err := h.ProcessTask(context.Background(), newAsynqTask(t))
	assert.ErrorContains(t, err, "storage unavailable")
	assert.Equal(t, models.StatusFailed, store.last().Status)
	assert.Equal(t, "storage unavailable", store.last().Error)
}

func TestProcessTask_Cancelled(t *testing.T) {
	store := &recordingStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewConversionHandler(&fakeHandler{
		outcome: failedOutcome(models.ErrTranslationFailed, models.StageTranslating),
		cancel:  cancel,
	}, store, logger.NewNop())

	err := h.ProcessTask(ctx, newAsynqTask(t))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.StatusCancelled, store.last().Status)
}

func TestProcessTask_InvalidPayload(t *testing.T) {
	store := &recordingStore{}
	h := NewConversionHandler(&fakeHandler{outcome: successOutcome()}, store, logger.NewNop())

	err := h.ProcessTask(context.Background(), asynq.NewTask(queue.TaskTypeConversion, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, store.statuses)
}

func TestLastAttempt(t *testing.T) {
	assert.True(t, lastAttempt(context.Background()))
}

func TestAsynqLogger(t *testing.T) {
	log := logger.NewTestLogger()
	l := &asynqLogger{logger: log}
	l.Info("scheduler ", "started")
	l.Warn("lease expired")
	assert.True(t, log.HasMessage("INFO", "scheduler started"))
	assert.True(t, log.HasMessage("WARN", "lease expired"))
}
