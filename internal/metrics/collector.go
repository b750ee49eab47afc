package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// QueueStats gives the collector access to queue depth at scrape time.
type QueueStats interface {
	QueueSizes() (pending, active, retry int, err error)
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats   QueueStats
	backend string

	queuePending *prometheus.Desc
	queueActive  *prometheus.Desc
	queueRetry   *prometheus.Desc
	backendInfo  *prometheus.Desc
}

// NewCollector creates a collector. stats may be nil when async jobs are
// disabled; queue gauges then report 0.
func NewCollector(stats QueueStats, backend string) *Collector {
	return &Collector{
		stats:   stats,
		backend: backend,
		queuePending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "pending_tasks"),
			"Conversion tasks waiting in the queue.",
			nil, nil,
		),
		queueActive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "active_tasks"),
			"Conversion tasks being processed.",
			nil, nil,
		),
		queueRetry: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "retry_tasks"),
			"Conversion tasks scheduled for retry.",
			nil, nil,
		),
		backendInfo: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "synthesis_backend_info"),
			"Speech synthesis backend selected at startup.",
			[]string{"backend"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queuePending
	ch <- c.queueActive
	ch <- c.queueRetry
	ch <- c.backendInfo
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var pending, active, retry int
	if c.stats != nil {
		if p, a, r, err := c.stats.QueueSizes(); err == nil {
			pending, active, retry = p, a, r
		}
	}
	ch <- prometheus.MustNewConstMetric(c.queuePending, prometheus.GaugeValue, float64(pending))
	ch <- prometheus.MustNewConstMetric(c.queueActive, prometheus.GaugeValue, float64(active))
	ch <- prometheus.MustNewConstMetric(c.queueRetry, prometheus.GaugeValue, float64(retry))
	ch <- prometheus.MustNewConstMetric(c.backendInfo, prometheus.GaugeValue, 1, c.backend)
}
