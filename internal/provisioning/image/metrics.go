package image

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/amiforge/internal/platform/cloud"
	"github.com/imamik/amiforge/internal/util/poll"
)

// Metrics collects per-run counters in a private registry, so a batch run
// can write them to a node-exporter textfile when it exits.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	resourcesCreated *prometheus.CounterVec
	teardownFailures *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	pollAttempts     *prometheus.CounterVec
}

// NewMetrics creates and registers the workflow metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resourcesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "amiforge",
				Name:      "resources_created_total",
				Help:      "Total number of cloud resources created by kind",
			},
			[]string{"kind"},
		),
		teardownFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "amiforge",
				Name:      "teardown_failures_total",
				Help:      "Total number of resources that could not be released by kind",
			},
			[]string{"kind"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "amiforge",
				Name:      "stage_duration_seconds",
				Help:      "Duration of workflow stages in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"workflow", "stage"},
		),
		pollAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "amiforge",
				Name:      "poll_attempts_total",
				Help:      "Total number of status polls by resource kind and wait outcome",
			},
			[]string{"resource", "outcome"},
		),
	}
	m.registry.MustRegister(m.resourcesCreated, m.teardownFailures, m.stageDuration, m.pollAttempts)
	return m
}

// Registry returns the registry holding the workflow metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) resourceCreated(kind cloud.Kind) {
	if m == nil {
		return
	}
	m.resourcesCreated.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) teardownFailed(kind cloud.Kind) {
	if m == nil {
		return
	}
	m.teardownFailures.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observeStage(workflow string, stage Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(workflow, string(stage)).Observe(d.Seconds())
}

func (m *Metrics) pollFinished(kind cloud.Kind, outcome poll.Outcome, polls int) {
	if m == nil {
		return
	}
	m.pollAttempts.WithLabelValues(string(kind), outcome.String()).Add(float64(polls))
}
