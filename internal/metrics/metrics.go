// Package metrics records agent calls and validation outcomes in a private
// Prometheus registry that the CLI exports as a textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kagent-dev/agentcheck/internal/version"
)

const namespace = "agentcheck"

// Metrics implements adapter.Recorder.
type Metrics struct {
	registry    *prometheus.Registry
	calls       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	validations *prometheus.CounterVec
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_calls_total",
			Help:      "Agent calls by protocol mode and outcome.",
		}, []string{"mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_call_duration_seconds",
			Help:      "Agent call latency by protocol mode.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"mode"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Validation runs by agent kind and result.",
		}, []string{"kind", "result"}),
	}
	m.registry.MustRegister(m.calls, m.duration, m.validations, NewBuildInfoCollector())
	return m
}

// NewBuildInfoCollector returns a collector that exports metrics about current version
// information.
func NewBuildInfoCollector() prometheus.Collector {
	info := version.Get()
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "agentcheck_build_info",
			Help: "agentcheck build metadata exposed as labels with a constant value of 1.",
			ConstLabels: prometheus.Labels{
				"version":    info.Version,
				"git_commit": info.GitCommit,
				"build_date": info.BuildDate,
				"go_version": info.GoVersion,
				"platform":   info.Platform,
			},
		},
		func() float64 { return 1 },
	)
}

func (m *Metrics) ObserveCall(mode, outcome string, duration time.Duration) {
	m.calls.WithLabelValues(mode, outcome).Inc()
	m.duration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (m *Metrics) ObserveValidation(kind string, pass bool) {
	result := "fail"
	if pass {
		result = "pass"
	}
	m.validations.WithLabelValues(kind, result).Inc()
}

// Registry exposes the registry, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
