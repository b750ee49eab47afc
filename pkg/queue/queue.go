// pkg/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	cfg "github.com/feichai0017/pdf-voice/config"
	"github.com/feichai0017/pdf-voice/internal/models"
)

// TaskType 定义任务类型
const (
	TaskTypeConversion = "conversion:run"
)

// 队列名称，按优先级排列
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

var queueNames = []string{QueueCritical, QueueDefault, QueueLow}

// QueuePriorities is the weighted queue set the worker serves.
var QueuePriorities = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrResultPending = errors.New("task result not available yet")
)

// Queue 接口定义
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	GetResult(ctx context.Context, taskID string) ([]byte, error)
	CancelTask(ctx context.Context, taskID string) error
	StatusStore
}

// StatusStore keeps the latest status record of each task.
type StatusStore interface {
	SaveStatus(ctx context.Context, status *TaskStatus) error
}

// Task 定义任务结构
type Task struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Payload   ConversionPayload `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ConversionPayload carries the document inline or as an object key.
type ConversionPayload struct {
	FileName       string `json:"fileName"`
	Document       []byte `json:"document,omitempty"`
	ObjectKey      string `json:"objectKey,omitempty"`
	StartPage      *int   `json:"startPage,omitempty"`
	EndPage        *int   `json:"endPage,omitempty"`
	TargetLanguage string `json:"targetLanguage"`
}

// TaskStatus 定义任务状态
type TaskStatus struct {
	TaskID     string                  `json:"taskId"`
	Status     models.ProcessingStatus `json:"status"`
	Stage      string                  `json:"stage,omitempty"`
	Progress   float64                 `json:"progress"`
	ErrorKind  models.ErrorKind        `json:"errorKind,omitempty"`
	Error      string                  `json:"error,omitempty"`
	FileName   string                  `json:"fileName,omitempty"`
	Retried    int                     `json:"retried,omitempty"`
	CreatedAt  time.Time               `json:"createdAt"`
	UpdatedAt  time.Time               `json:"updatedAt"`
	FinishedAt time.Time               `json:"finishedAt,omitempty"`
}

// Finished reports whether the task reached a final state.
func (s *TaskStatus) Finished() bool {
	switch s.Status {
	case models.StatusCompleted, models.StatusFailed, models.StatusCancelled:
		return true
	}
	return false
}

// NewConversionTask builds a task with a fresh id.
func NewConversionTask(payload ConversionPayload, priority int) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Type:      TaskTypeConversion,
		Priority:  priority,
		Payload:   payload,
		Metadata:  map[string]string{"fileName": payload.FileName},
		CreatedAt: time.Now(),
	}
}

// DecodeTask reads a task from an asynq payload.
func DecodeTask(data []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	if task.ID == "" {
		return nil, fmt.Errorf("invalid task data: missing id")
	}
	if len(task.Payload.Document) == 0 && task.Payload.ObjectKey == "" {
		return nil, fmt.Errorf("invalid task data: no document or object key")
	}
	return &task, nil
}

// AsynqQueue 实现
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	config    *cfg.QueueConfig
}

// RedisOpt builds the asynq connection options from config.
func RedisOpt(c *cfg.QueueConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// NewAsynqQueue 创建新的队列实例
func NewAsynqQueue(c *cfg.QueueConfig) *AsynqQueue {
	redisOpt := RedisOpt(c)

	// 创建 Redis 客户端
	redisClient := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis:     redisClient,
		config:    c,
	}
}

// Ping checks the redis connection.
func (q *AsynqQueue) Ping(ctx context.Context) error {
	return q.redis.Ping(ctx).Err()
}

func (q *AsynqQueue) Close() error {
	errs := []error{q.client.Close(), q.inspector.Close(), q.redis.Close()}
	return errors.Join(errs...)
}

// Enqueue 将任务加入队列
func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Type == "" {
		task.Type = TaskTypeConversion
	}

	// 序列化整个任务
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	t := asynq.NewTask(task.Type, payload, taskOptions(task, q.config)...)
	info, err := q.client.EnqueueContext(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	// 记录任务ID
	task.ID = info.ID

	now := time.Now()
	if err := q.SaveStatus(ctx, &TaskStatus{
		TaskID:    task.ID,
		Status:    models.StatusPending,
		Stage:     string(models.StageIdle),
		FileName:  task.Payload.FileName,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}
	return nil
}

func taskOptions(task *Task, c *cfg.QueueConfig) []asynq.Option {
	// 设置任务选项
	opts := []asynq.Option{
		asynq.MaxRetry(c.MaxRetry),
		asynq.Timeout(c.TaskTimeout),
		asynq.Retention(c.Retention),
		asynq.TaskID(task.ID),
		asynq.Queue(queueForPriority(task.Priority)),
	}
	return opts
}

// 根据优先选择队列
func queueForPriority(priority int) string {
	switch priority {
	case 1:
		return QueueCritical
	case 2:
		return QueueDefault
	default:
		return QueueLow
	}
}

// GetTaskStatus 获取任务状态
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	// 首先尝试从 Redis 获取状态
	status, err := q.loadStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if status != nil {
		return status, nil
	}

	// 如果 Redis 中没有，从所有队列中查找
	info, err := q.findTask(taskID)
	if err != nil {
		return nil, err
	}
	return convertAsynqStatus(info), nil
}

// GetResult returns the serialized outcome written by the worker.
func (q *AsynqQueue) GetResult(ctx context.Context, taskID string) ([]byte, error) {
	info, err := q.findTask(taskID)
	if err != nil {
		return nil, err
	}
	if len(info.Result) == 0 {
		return nil, ErrResultPending
	}
	return info.Result, nil
}

func (q *AsynqQueue) findTask(taskID string) (*asynq.TaskInfo, error) {
	for _, queueName := range queueNames {
		info, err := q.inspector.GetTaskInfo(queueName, taskID)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("failed to inspect task: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// CancelTask 取消任务. Queued tasks are deleted, running ones are signalled.
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	info, err := q.findTask(taskID)
	if err != nil {
		return err
	}

	switch info.State {
	case asynq.TaskStateActive:
		if err := q.inspector.CancelProcessing(taskID); err != nil {
			return fmt.Errorf("failed to cancel task: %w", err)
		}
	case asynq.TaskStateCompleted, asynq.TaskStateArchived:
		return fmt.Errorf("task %s already finished", taskID)
	default:
		if err := q.inspector.DeleteTask(info.Queue, taskID); err != nil {
			return fmt.Errorf("failed to cancel task: %w", err)
		}
	}

	prev, err := q.loadStatus(ctx, taskID)
	if err != nil {
		return err
	}
	if prev == nil {
		prev = convertAsynqStatus(info)
	}
	return q.SaveStatus(ctx, cancelledStatus(prev, time.Now()))
}

// loadStatus reads the stored status record. A missing record is (nil, nil).
func (q *AsynqQueue) loadStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	data, err := q.redis.Get(ctx, statusKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}
	var status TaskStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}

// cancelledStatus marks prev as cancelled, keeping its file name, creation
// time and progress.
func cancelledStatus(prev *TaskStatus, now time.Time) *TaskStatus {
	status := *prev
	status.Status = models.StatusCancelled
	status.UpdatedAt = now
	status.FinishedAt = now
	return &status
}

// SaveStatus 保存任务状态
func (q *AsynqQueue) SaveStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := q.redis.Set(ctx, statusKey(status.TaskID), data, q.config.StatusTTL).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

// QueueSizes sums pending, active and retry counts over all queues.
func (q *AsynqQueue) QueueSizes() (pending, active, retry int, err error) {
	for _, queueName := range queueNames {
		info, qerr := q.inspector.GetQueueInfo(queueName)
		if qerr != nil {
			if errors.Is(qerr, asynq.ErrQueueNotFound) {
				continue
			}
			return 0, 0, 0, qerr
		}
		pending += info.Pending
		active += info.Active
		retry += info.Retry
	}
	return pending, active, retry, nil
}

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

// convertAsynqStatus 将 asynq 状态转换为 TaskStatus
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		Retried:   info.Retried,
		UpdatedAt: time.Now(),
	}

	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateAggregating:
		status.Status = models.StatusPending
	case asynq.TaskStateActive:
		status.Status = models.StatusRunning
	case asynq.TaskStateRetry:
		status.Status = models.StatusRunning
		status.Error = info.LastErr
	case asynq.TaskStateCompleted:
		status.Status = models.StatusCompleted
		status.Progress = 1.0
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateArchived:
		status.Status = models.StatusFailed
		status.Error = info.LastErr
		status.FinishedAt = info.LastFailedAt
	}

	return status
}
