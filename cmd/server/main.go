package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/feichai0017/pdf-voice/api/handlers"
	"github.com/feichai0017/pdf-voice/api/routes"
	cfg "github.com/feichai0017/pdf-voice/config"
	"github.com/feichai0017/pdf-voice/internal/metrics"
	"github.com/feichai0017/pdf-voice/internal/service/conversion"
	"github.com/feichai0017/pdf-voice/pkg/logger"
	"github.com/feichai0017/pdf-voice/pkg/queue"
)

func main() {
	sc := cfg.GetServerConfig()

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(sc.LogLevel),
		logger.WithEncoding(sc.LogEncoding),
		logger.WithOutputPaths(sc.LogOutputs()),
		logger.WithInitialFields(map[string]interface{}{"component": "server"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	// redis is optional for the server: without it only synchronous
	// conversion is offered.
	var q *queue.AsynqQueue
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	q, err = conversion.ConnectQueue(pingCtx, cfg.GetQueueConfig())
	pingCancel()
	if err != nil {
		log.Warn("Async conversions disabled", logger.Error(err))
	} else {
		defer q.Close()
	}

	// init conversion service
	svc, err := conversion.GetService(ctx, log, q)
	if err != nil {
		log.Fatal("Failed to get conversion service", logger.Error(err))
	}

	var (
		pinger handlers.Pinger
		stats  metrics.QueueStats
	)
	if q != nil {
		pinger, stats = q, q
	}
	prometheus.MustRegister(metrics.NewCollector(stats, svc.Backend()))

	// init handlers
	gin.SetMode(sc.GinMode)
	h := handlers.NewHandlers(svc, pinger, log, sc.MaxUploadSize)
	r := gin.New()
	r.MaxMultipartMemory = sc.MaxUploadSize
	routes.SetupRoutes(r, h, sc.AllowedOrigins, log)

	srv := &http.Server{
		Addr:         ":" + sc.Port,
		Handler:      r,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
	}

	// start server
	go func() {
		log.Info("Server starting",
			logger.String("port", sc.Port),
			logger.String("backend", svc.Backend()),
			logger.Bool("async", q != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
