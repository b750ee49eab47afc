package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/pdf-voice/pkg/logger"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

type Config struct {
	Concurrency     int
	Queues          map[string]int
	ShutdownTimeout time.Duration
	// RetryDelay is multiplied by the retry count.
	RetryDelay time.Duration
}

type BaseWorker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	logger   logger.Logger
	stopOnce sync.Once
}

func newBaseWorker(redisOpt asynq.RedisConnOpt, cfg *Config, log logger.Logger) BaseWorker {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          cfg.Queues,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          &asynqLogger{logger: log.Named("asynq")},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return time.Duration(n) * retryDelay
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)
			log.Warn("Task attempt failed",
				logger.String("taskId", id),
				logger.String("type", task.Type()),
				logger.Int("retried", retried),
				logger.Error(err),
			)
		}),
	})

	return BaseWorker{
		server: server,
		mux:    asynq.NewServeMux(),
		logger: log,
	}
}

// Start runs the server in the background until ctx is done.
func (w *BaseWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}

// Stop stops pulling new tasks and waits for active ones up to the
// shutdown timeout.
func (w *BaseWorker) Stop() error {
	w.stopOnce.Do(func() {
		w.server.Stop()
		w.server.Shutdown()
		w.logger.Info("Worker stopped")
	})
	return nil
}

// asynqLogger routes asynq's own logs through the service logger.
type asynqLogger struct {
	logger logger.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal(fmt.Sprint(args...)) }
