package conversion

import (
	"context"
	"fmt"

	cfg "github.com/feichai0017/pdf-voice/config"
	"github.com/feichai0017/pdf-voice/internal/agent"
	"github.com/feichai0017/pdf-voice/internal/metrics"
	"github.com/feichai0017/pdf-voice/internal/pipeline"
	"github.com/feichai0017/pdf-voice/pkg/logger"
	"github.com/feichai0017/pdf-voice/pkg/queue"
	"github.com/feichai0017/pdf-voice/pkg/storage"
)

// defaultPriority routes submissions to the "default" queue.
const defaultPriority = 2

// GetService builds the service from the process configuration. q may be
// nil when redis is not available; async submission is then disabled.
func GetService(ctx context.Context, log logger.Logger, q *queue.AsynqQueue) (*ConversionService, error) {
	// 初始化流水线
	pipe, err := agent.NewFactoryFromEnv(log).BuildPipeline(ctx,
		pipeline.WithObserver(metrics.NewPipelineObserver()),
		pipeline.WithReporter(pipeline.NewLogReporter(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	// 初始化文档来源
	source, err := storage.NewSource(ctx, storage.SourceType(cfg.GetStorageConfig().Source), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document source: %w", err)
	}

	sc := cfg.GetServerConfig()
	serviceCfg := &ServiceConfig{
		MaxFileSize:     sc.MaxUploadSize,
		MaxPages:        sc.MaxPages,
		MaxConcurrent:   5,
		DefaultPriority: defaultPriority,
	}

	var jobs queue.Queue
	if q != nil {
		jobs = q
	}
	return NewService(pipe, jobs, source, log, serviceCfg), nil
}

// ConnectQueue opens the asynq queue and checks redis. On failure the queue
// is closed and the ping error returned.
func ConnectQueue(ctx context.Context, qc *cfg.QueueConfig) (*queue.AsynqQueue, error) {
	q := queue.NewAsynqQueue(qc)
	if err := q.Ping(ctx); err != nil {
		_ = q.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", qc.RedisAddr, err)
	}
	return q, nil
}
