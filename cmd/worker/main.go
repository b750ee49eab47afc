package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cfg "github.com/feichai0017/pdf-voice/config"
	"github.com/feichai0017/pdf-voice/internal/metrics"
	"github.com/feichai0017/pdf-voice/internal/service/conversion"
	"github.com/feichai0017/pdf-voice/pkg/logger"
	"github.com/feichai0017/pdf-voice/pkg/queue"
	"github.com/feichai0017/pdf-voice/pkg/worker"
)

func main() {
	sc := cfg.GetServerConfig()
	qc := cfg.GetQueueConfig()

	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel(sc.LogLevel),
		logger.WithEncoding(sc.LogEncoding),
		logger.WithOutputPaths(sc.LogOutputs()),
		logger.WithInitialFields(map[string]interface{}{"component": "worker"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 创建上下文和取消函数
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 连接队列
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	q, err := conversion.ConnectQueue(pingCtx, qc)
	pingCancel()
	if err != nil {
		log.Error("Failed to connect queue", logger.Error(err))
		os.Exit(1)
	}
	defer q.Close()

	// 创建转换服务
	svc, err := conversion.GetService(ctx, log, q)
	if err != nil {
		log.Error("Failed to create conversion service", logger.Error(err))
		os.Exit(1)
	}

	prometheus.MustRegister(metrics.NewCollector(q, svc.Backend()))
	metricsSrv := serveMetrics(qc.MetricsAddr, log)

	// 创建 worker
	conversionWorker := worker.NewConversionWorker(queue.RedisOpt(qc), &worker.Config{
		Concurrency:     qc.Concurrency,
		Queues:          queue.QueuePriorities,
		ShutdownTimeout: sc.ShutdownTimeout,
	}, svc, q, log)

	// 启动 worker
	if err := conversionWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker started",
		logger.Int("concurrency", qc.Concurrency),
		logger.String("backend", svc.Backend()),
	)

	// 等待中断信号
	<-ctx.Done()

	// 优雅关闭
	log.Info("Shutting down worker...")
	if err := conversionWorker.Stop(); err != nil {
		log.Error("Worker stop failed", logger.Error(err))
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Info("Worker stopped")
}

func serveMetrics(addr string, log logger.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server error", logger.Error(err))
		}
	}()
	return srv
}
