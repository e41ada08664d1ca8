// Package metrics instruments the core with Prometheus client_golang
// counters, gauges, and histograms. A Recorder is constructed once at
// startup, holding its own *prometheus.Registry, and injected into
// queue.Core via queue.WithMetrics — avoiding the double-registration
// panics a package-level global registry invites across tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements queue.Metrics against a private Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	messagesAdded       *prometheus.CounterVec
	messagesPolled      *prometheus.CounterVec
	queueDepth          *prometheus.GaugeVec
	backendOpDuration   *prometheus.HistogramVec
	assignmentConflicts *prometheus.CounterVec
}

// New constructs and registers every metric.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.messagesAdded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queuehub_messages_added_total",
		Help: "Total number of messages added, by sub-queue.",
	}, []string{"sub_queue"})

	r.messagesPolled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queuehub_messages_polled_total",
		Help: "Total number of messages polled, by sub-queue.",
	}, []string{"sub_queue"})

	r.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queuehub_queue_depth",
		Help: "Current message count, by sub-queue.",
	}, []string{"sub_queue"})

	r.backendOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queuehub_backend_op_duration_seconds",
		Help:    "Backend operation latency, by operation and backend kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "backend"})

	r.assignmentConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queuehub_assignment_conflicts_total",
		Help: "Total number of assign() calls that lost a race to another owner, by sub-queue.",
	}, []string{"sub_queue"})

	r.registry.MustRegister(
		r.messagesAdded,
		r.messagesPolled,
		r.queueDepth,
		r.backendOpDuration,
		r.assignmentConflicts,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) IncMessagesAdded(subQueue string)  { r.messagesAdded.WithLabelValues(subQueue).Inc() }
func (r *Recorder) IncMessagesPolled(subQueue string) { r.messagesPolled.WithLabelValues(subQueue).Inc() }
func (r *Recorder) SetQueueDepth(subQueue string, n int) {
	r.queueDepth.WithLabelValues(subQueue).Set(float64(n))
}
func (r *Recorder) IncAssignmentConflicts(subQueue string) {
	r.assignmentConflicts.WithLabelValues(subQueue).Inc()
}
func (r *Recorder) ObserveBackendOp(op, backendKind string, dur time.Duration) {
	r.backendOpDuration.WithLabelValues(op, backendKind).Observe(dur.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler for this Recorder.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
