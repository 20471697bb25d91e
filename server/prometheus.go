package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector is a MetricsCollector backed by
// prometheus/client_golang, registered on a caller-supplied
// *prometheus.Registry (SPEC_FULL.md's domain stack §2).
type PrometheusCollector struct {
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	connectionsTotal *prometheus.CounterVec
	authTotal        *prometheus.CounterVec
}

// NewPrometheusCollector constructs and registers the collector's metrics
// on reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sfap",
			Name:      "commands_total",
			Help:      "Number of SFAP commands dispatched, by command and outcome.",
		}, []string{"command", "success"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sfap",
			Name:      "command_duration_seconds",
			Help:      "Time spent executing an SFAP command handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sfap",
			Name:      "connections_total",
			Help:      "Number of accepted TCP connections, by accept outcome.",
		}, []string{"accepted", "reason"}),
		authTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sfap",
			Name:      "auth_attempts_total",
			Help:      "Number of AUTH attempts, by outcome.",
		}, []string{"success"}),
	}
	reg.MustRegister(c.commandsTotal, c.commandDuration, c.connectionsTotal, c.authTotal)
	return c
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (c *PrometheusCollector) RecordCommand(cmd string, success bool, duration time.Duration) {
	c.commandsTotal.WithLabelValues(cmd, boolLabel(success)).Inc()
	c.commandDuration.WithLabelValues(cmd).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordConnection(accepted bool, reason string) {
	c.connectionsTotal.WithLabelValues(boolLabel(accepted), reason).Inc()
}

func (c *PrometheusCollector) RecordAuthentication(success bool, user string) {
	// user is deliberately not a label: unbounded cardinality from
	// untrusted input would blow up the metric's series count.
	c.authTotal.WithLabelValues(boolLabel(success)).Inc()
}
