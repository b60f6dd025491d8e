package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus-compatible instrumentation for the async
// execution engine. A nil
// *Metrics no-ops on every method, so Options.Metrics can be left unset at
// no cost.
type Metrics struct {
	activeTasks   prometheus.Gauge
	queueDepth    prometheus.Gauge
	taskLatency   *prometheus.HistogramVec
	tasksTotal    *prometheus.CounterVec
}

// NewMetrics registers the dagflow_* metric family with reg and returns a
// *Metrics bound to it. Pass prometheus.DefaultRegisterer for the global
// registry, or a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		activeTasks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dagflow_active_tasks",
			Help: "Number of job bodies currently executing on the worker pool.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dagflow_queue_depth",
			Help: "Number of tasks awaiting predecessor outcomes or a free worker slot.",
		}),
		taskLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dagflow_task_latency_ms",
			Help:    "Task execution duration in milliseconds, from dispatch to terminal outcome.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"job_id", "outcome"}),
		tasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dagflow_tasks_total",
			Help: "Cumulative count of terminal tasks by outcome.",
		}, []string{"job_id", "outcome"}),
	}
}

func (m *Metrics) incActive() {
	if m == nil {
		return
	}
	m.activeTasks.Inc()
}

func (m *Metrics) decActive() {
	if m == nil {
		return
	}
	m.activeTasks.Dec()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) observeTask(jobID string, outcome Outcome, latencyMS float64) {
	if m == nil {
		return
	}
	m.taskLatency.WithLabelValues(jobID, outcome.String()).Observe(latencyMS)
	m.tasksTotal.WithLabelValues(jobID, outcome.String()).Inc()
}
