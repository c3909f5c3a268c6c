package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports execution metrics through a prometheus registry.
type PrometheusRecorder struct {
	phases        *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	outputBytes   *prometheus.HistogramVec
	launchFails   *prometheus.CounterVec
}

// NewPrometheusRecorder registers the execution metrics on the given
// registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runbox",
			Name:      "phases_total",
			Help:      "Finished sandbox phases by language, phase and outcome kind.",
		}, []string{"language", "phase", "kind"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "runbox",
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of sandbox phases.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"language", "phase"}),
		outputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "runbox",
			Name:      "phase_output_bytes",
			Help:      "Captured output bytes per phase, after capping.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		}, []string{"language", "phase"}),
		launchFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runbox",
			Name:      "launch_failures_total",
			Help:      "Sandbox launches that failed before the phase started.",
		}, []string{"language"}),
	}
	reg.MustRegister(r.phases, r.phaseDuration, r.outputBytes, r.launchFails)
	return r
}

func (r *PrometheusRecorder) ObservePhase(ctx context.Context, languageID, phase, kind string, durationMs int64, outputBytes int64) {
	if kind == "" {
		kind = "none"
	}
	r.phases.WithLabelValues(languageID, phase, kind).Inc()
	r.phaseDuration.WithLabelValues(languageID, phase).Observe(float64(durationMs) / 1000)
	r.outputBytes.WithLabelValues(languageID, phase).Observe(float64(outputBytes))
}

func (r *PrometheusRecorder) ObserveLaunchFailure(ctx context.Context, languageID string) {
	r.launchFails.WithLabelValues(languageID).Inc()
}
