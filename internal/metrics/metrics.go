package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/feichai0017/pdf-voice/internal/models"
)

const namespace = "pdf_voice"

// HTTP metrics (incremented by middleware).
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, []string{"method", "path_pattern", "status_code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path_pattern"})
)

// Pipeline metrics.
var (
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of each conversion stage.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms → ~160s
	}, []string{"stage"})

	ConversionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversions_total",
		Help:      "Finished conversions by result.",
	}, []string{"result"})

	AudioBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_bytes_total",
		Help:      "Bytes of MP3 audio produced per synthesis backend.",
	}, []string{"backend"})

	QueueTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_tasks_total",
		Help:      "Conversion tasks handled by the worker.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		StageDuration,
		ConversionsTotal,
		AudioBytesTotal,
		QueueTasksTotal,
	)
}

// Instrument returns gin middleware that records HTTP request metrics. The
// route pattern is used as the path label to keep cardinality bounded.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		pattern := c.FullPath()
		if pattern == "" {
			pattern = "unknown"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(method, pattern, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, pattern).Observe(time.Since(start).Seconds())
	}
}

// PipelineObserver feeds stage timings and outcomes into the pipeline metrics.
type PipelineObserver struct{}

func NewPipelineObserver() *PipelineObserver {
	return &PipelineObserver{}
}

func (PipelineObserver) ObserveStage(stage models.Stage, elapsed time.Duration) {
	StageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

func (PipelineObserver) ObserveOutcome(outcome *models.ConversionOutcome) {
	if outcome.Error != nil {
		ConversionsTotal.WithLabelValues(string(outcome.Error.Kind)).Inc()
		return
	}
	ConversionsTotal.WithLabelValues("success").Inc()
	if outcome.Audio != nil && outcome.Backend != "" {
		AudioBytesTotal.WithLabelValues(outcome.Backend).Add(float64(outcome.Audio.Size()))
	}
}
