package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream outcomes used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
)

// StreamingMetrics groups the collectors of the reply pipeline. A nil
// *StreamingMetrics is valid and records nothing.
type StreamingMetrics struct {
	requests      *prometheus.CounterVec
	active        prometheus.Gauge
	firstFragment prometheus.Histogram
	duration      *prometheus.HistogramVec
	fragments     prometheus.Counter
	dropped       prometheus.Counter
	persistence   *prometheus.CounterVec
}

// NewStreamingMetrics registers the collectors on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewStreamingMetrics(reg prometheus.Registerer) *StreamingMetrics {
	factory := promauto.With(reg)
	return &StreamingMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "king",
			Subsystem: "chat_stream",
			Name:      "requests_total",
			Help:      "Streaming reply requests by persona and outcome",
		}, []string{"persona", "outcome"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "king",
			Subsystem: "chat_stream",
			Name:      "active",
			Help:      "Replies currently streaming",
		}),
		firstFragment: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "king",
			Subsystem: "chat_stream",
			Name:      "first_fragment_seconds",
			Help:      "Time from provider open to the first delivered fragment",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "king",
			Subsystem: "chat_stream",
			Name:      "duration_seconds",
			Help:      "Total reply duration by outcome",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
		fragments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "king",
			Subsystem: "chat_stream",
			Name:      "fragments_total",
			Help:      "Fragments delivered to clients",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "king",
			Subsystem: "chat_stream",
			Name:      "dropped_fragments_total",
			Help:      "Provider results discarded for missing text",
		}),
		persistence: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "king",
			Subsystem: "chat_stream",
			Name:      "persistence_total",
			Help:      "Background assistant turn writes by status",
		}, []string{"status"}),
	}
}

// StreamStarted marks a reply as in flight.
func (m *StreamingMetrics) StreamStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

// StreamFinished records the end of an in-flight reply.
func (m *StreamingMetrics) StreamFinished(persona, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.requests.WithLabelValues(persona, outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// StreamRejected records a request that failed before streaming began.
func (m *StreamingMetrics) StreamRejected(persona string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(persona, OutcomeRejected).Inc()
}

// FirstFragment records time to first delivered fragment.
func (m *StreamingMetrics) FirstFragment(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.firstFragment.Observe(elapsed.Seconds())
}

// FragmentDelivered counts one delivered fragment.
func (m *StreamingMetrics) FragmentDelivered() {
	if m == nil {
		return
	}
	m.fragments.Inc()
}

// FragmentDropped counts one discarded provider result.
func (m *StreamingMetrics) FragmentDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// Persisted records a background write result ("ok" or "error").
func (m *StreamingMetrics) Persisted(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.persistence.WithLabelValues(status).Inc()
}
