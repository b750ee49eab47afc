package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/feichai0017/pdf-voice/config"
	"github.com/feichai0017/pdf-voice/internal/models"
)

func TestNewConversionTask(t *testing.T) {
	start := 2
	task := NewConversionTask(ConversionPayload{
		FileName:       "book.pdf",
		Document:       []byte("%PDF-1.4"),
		StartPage:      &start,
		TargetLanguage: "Spanish",
	}, 1)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, TaskTypeConversion, task.Type)
	assert.Equal(t, "book.pdf", task.Metadata["fileName"])

	data, err := json.Marshal(task)
	require.NoError(t, err)

	decoded, err := DecodeTask(data)
	require.NoError(t, err)
	assert.Equal(t, task.ID, decoded.ID)
	assert.Equal(t, []byte("%PDF-1.4"), decoded.Payload.Document)
	require.NotNil(t, decoded.Payload.StartPage)
	assert.Equal(t, 2, *decoded.Payload.StartPage)
	assert.Nil(t, decoded.Payload.EndPage)
}

func TestDecodeTask_Invalid(t *testing.T) {
	_, err := DecodeTask([]byte("{"))
	assert.Error(t, err)

	_, err = DecodeTask([]byte(`{"payload":{"objectKey":"a.pdf"}}`))
	assert.ErrorContains(t, err, "missing id")

	_, err = DecodeTask([]byte(`{"id":"t1","payload":{}}`))
	assert.ErrorContains(t, err, "no document")

	task, err := DecodeTask([]byte(`{"id":"t1","payload":{"objectKey":"a.pdf"}}`))
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", task.Payload.ObjectKey)
}

func TestQueueForPriority(t *testing.T) {
	assert.Equal(t, QueueCritical, queueForPriority(1))
	assert.Equal(t, QueueDefault, queueForPriority(2))
	assert.Equal(t, QueueLow, queueForPriority(3))
	assert.Equal(t, QueueLow, queueForPriority(0))
	assert.Len(t, QueuePriorities, 3)
}

func TestTaskOptions(t *testing.T) {
	task := &Task{ID: "t1", Priority: 2}
	opts := taskOptions(task, &cfg.QueueConfig{MaxRetry: 3, TaskTimeout: time.Minute, Retention: time.Hour})

	types := map[asynq.OptionType]any{}
	for _, opt := range opts {
		types[opt.Type()] = opt.Value()
	}
	assert.Equal(t, 3, types[asynq.MaxRetryOpt])
	assert.Equal(t, time.Minute, types[asynq.TimeoutOpt])
	assert.Equal(t, time.Hour, types[asynq.RetentionOpt])
	assert.Equal(t, "t1", types[asynq.TaskIDOpt])
	assert.Equal(t, QueueDefault, types[asynq.QueueOpt])
}

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "task_status:abc", statusKey("abc"))
}

func TestConvertAsynqStatus(t *testing.T) {
	done := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		info *asynq.TaskInfo
		want models.ProcessingStatus
	}{
		{"pending", &asynq.TaskInfo{ID: "a", State: asynq.TaskStatePending}, models.StatusPending},
		{"scheduled", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateScheduled}, models.StatusPending},
		{"active", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateActive}, models.StatusRunning},
		{"retry", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateRetry, LastErr: "boom"}, models.StatusRunning},
		{"completed", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateCompleted, CompletedAt: done}, models.StatusCompleted},
		{"archived", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateArchived, LastErr: "boom"}, models.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := convertAsynqStatus(tt.info)
			assert.Equal(t, "a", status.TaskID)
			assert.Equal(t, tt.want, status.Status)
		})
	}

	status := convertAsynqStatus(&asynq.TaskInfo{ID: "a", State: asynq.TaskStateCompleted, CompletedAt: done})
	assert.Equal(t, 1.0, status.Progress)
	assert.Equal(t, done, status.FinishedAt)
	assert.True(t, status.Finished())

	status = convertAsynqStatus(&asynq.TaskInfo{ID: "a", State: asynq.TaskStateArchived, LastErr: "boom"})
	assert.Equal(t, "boom", status.Error)
}

func TestCancelledStatus(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := created.Add(time.Minute)
	prev := &TaskStatus{
		TaskID:    "a",
		Status:    models.StatusRunning,
		Stage:     string(models.StageTranslating),
		Progress:  0.33,
		FileName:  "book.pdf",
		CreatedAt: created,
		UpdatedAt: created,
	}

	status := cancelledStatus(prev, now)
	assert.Equal(t, models.StatusCancelled, status.Status)
	assert.Equal(t, "book.pdf", status.FileName)
	assert.Equal(t, created, status.CreatedAt)
	assert.Equal(t, 0.33, status.Progress)
	assert.Equal(t, now, status.UpdatedAt)
	assert.Equal(t, now, status.FinishedAt)
	assert.True(t, status.Finished())

	// prev is left untouched
	assert.Equal(t, models.StatusRunning, prev.Status)
}

func TestTaskStatus_Finished(t *testing.T) {
	assert.False(t, (&TaskStatus{Status: models.StatusPending}).Finished())
	assert.False(t, (&TaskStatus{Status: models.StatusRunning}).Finished())
	assert.True(t, (&TaskStatus{Status: models.StatusFailed}).Finished())
	assert.True(t, (&TaskStatus{Status: models.StatusCancelled}).Finished())
}
