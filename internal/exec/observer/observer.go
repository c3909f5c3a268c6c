// Package observer defines metrics hooks for sandbox execution.
package observer

import "context"

// MetricsRecorder records execution metrics. Implementations must be safe for
// concurrent use.
type MetricsRecorder interface {
	// ObservePhase records one finished sandbox phase.
	ObservePhase(ctx context.Context, languageID, phase, kind string, durationMs int64, outputBytes int64)
	// ObserveLaunchFailure records a sandbox that could not be started.
	ObserveLaunchFailure(ctx context.Context, languageID string)
}

// NoopMetricsRecorder discards all observations.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObservePhase(ctx context.Context, languageID, phase, kind string, durationMs int64, outputBytes int64) {
}

func (NoopMetricsRecorder) ObserveLaunchFailure(ctx context.Context, languageID string) {}
