package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector for Prometheus.
type PrometheusCollector struct {
	messages     *prometheus.CounterVec
	retries      *prometheus.CounterVec
	deadLetters  *prometheus.CounterVec
	posts        *prometheus.CounterVec
	postLatency  *prometheus.HistogramVec
	statusWrites *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

// NewPrometheusCollector creates a collector and registers it on reg.
func NewPrometheusCollector(namespace string, reg prometheus.Registerer) *PrometheusCollector {
	pc := &PrometheusCollector{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Messages consumed per stage, topic and outcome",
			},
			[]string{"stage", "topic", "outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "message_retries_total",
				Help:      "Handler retries per stage and topic",
			},
			[]string{"stage", "topic"},
		),
		deadLetters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dead_letters_total",
				Help:      "Messages moved to a dead-letter topic",
			},
			[]string{"stage", "topic"},
		),
		posts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_posts_total",
				Help:      "Ledger posting attempts by outcome",
			},
			[]string{"outcome"},
		),
		postLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_post_duration_seconds",
				Help:      "Duration of one atomic ledger posting",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		statusWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_writes_total",
				Help:      "Status-advancing writes, applied or rejected by the transition guard",
			},
			[]string{"status", "applied"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		pc.messages,
		pc.retries,
		pc.deadLetters,
		pc.posts,
		pc.postLatency,
		pc.statusWrites,
		pc.breakerState,
	)

	return pc
}

func (pc *PrometheusCollector) RecordMessage(stage, topic, outcome string) {
	pc.messages.WithLabelValues(stage, topic, outcome).Inc()
}

func (pc *PrometheusCollector) RecordRetry(stage, topic string) {
	pc.retries.WithLabelValues(stage, topic).Inc()
}

func (pc *PrometheusCollector) RecordDeadLetter(stage, topic string) {
	pc.deadLetters.WithLabelValues(stage, topic).Inc()
}

func (pc *PrometheusCollector) RecordPost(outcome string, duration time.Duration) {
	pc.posts.WithLabelValues(outcome).Inc()
	pc.postLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordStatusWrite(status string, applied bool) {
	pc.statusWrites.WithLabelValues(status, strconv.FormatBool(applied)).Inc()
}

func (pc *PrometheusCollector) RecordBreakerState(name string, state BreakerState) {
	pc.breakerState.WithLabelValues(name).Set(float64(state))
}
