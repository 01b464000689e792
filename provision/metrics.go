package provision

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeLaunched     = "launched"
	outcomeDuplicate    = "duplicate"
	outcomeMalformed    = "malformed"
	outcomeNoImage      = "no_image"
	outcomeRenderFailed = "render_failed"
	outcomeLaunchFailed = "launch_failed"
)

type Metrics struct {
	Launches       *prometheus.CounterVec
	ResolveSeconds prometheus.Histogram
	LaunchSeconds  prometheus.Histogram
}

// NewMetrics registers the provisioner collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "jobs_total",
			Help:      "Created-job notifications handled by the provisioner, by outcome.",
		}, []string{"outcome"}),
		ResolveSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "image_resolve_seconds",
			Help:      "Latency of machine image resolution.",
			Buckets:   prometheus.DefBuckets,
		}),
		LaunchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "launch_seconds",
			Help:      "Latency of instance launch requests.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Launches, m.ResolveSeconds, m.LaunchSeconds)
	}
	return m
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.Launches.WithLabelValues(outcome).Inc()
}
