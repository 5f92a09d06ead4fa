package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Broker metrics
	BrokerPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digsinet_broker_publish_total",
			Help: "Total number of messages published, by channel",
		},
		[]string{"channel"},
	)

	BrokerPollTimeoutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digsinet_broker_poll_timeout_total",
			Help: "Total number of polls that returned with no message, by channel",
		},
		[]string{"channel"},
	)

	BrokerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digsinet_broker_errors_total",
			Help: "Total number of broker errors, by backend and operation",
		},
		[]string{"backend", "op"},
	)

	// Node management metrics
	NodeUpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digsinet_node_update_duration_seconds",
			Help:    "Duration of a single node management read/write cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topology", "op"},
	)

	NodeNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digsinet_node_notifications_total",
			Help: "Total number of gNMI notifications published after a non-empty diff",
		},
		[]string{"topology"},
	)

	NodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digsinet_node_errors_total",
			Help: "Total number of suppressed per-node management errors, by topology",
		},
		[]string{"topology"},
	)

	// Controller metrics
	ControllerTickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digsinet_controller_tick_duration_seconds",
			Help:    "Duration of one controller tick (refresh + apps + inbox drain)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sibling"},
	)

	ControllerTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digsinet_controller_ticks_total",
			Help: "Total number of controller ticks run, by sibling",
		},
		[]string{"sibling"},
	)

	AppRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digsinet_app_run_duration_seconds",
			Help:    "Duration of a single application Run invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"app", "sibling"},
	)

	// Build / deploy metrics
	TopologyBuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digsinet_topology_build_duration_seconds",
			Help:    "Duration of a topology build/deploy invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sibling"},
	)

	TopologyBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digsinet_topology_builds_total",
			Help: "Total number of topology build attempts, by sibling and outcome",
		},
		[]string{"sibling", "outcome"},
	)

	SiblingsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "digsinet_siblings_running",
			Help: "Number of siblings currently marked as running",
		},
	)
)

func init() {
	prometheus.MustRegister(
		BrokerPublishTotal,
		BrokerPollTimeoutTotal,
		BrokerErrorsTotal,
		NodeUpdateDuration,
		NodeNotificationsTotal,
		NodeErrorsTotal,
		ControllerTickDuration,
		ControllerTicksTotal,
		AppRunDuration,
		TopologyBuildDuration,
		TopologyBuildsTotal,
		SiblingsRunning,
	)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations and observing the result into a
// histogram once the operation completes.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer, started now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
