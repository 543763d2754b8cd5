package metrics

import "time"

// BuildOutcomeLabel enumerates final build statuses for counters.
type BuildOutcomeLabel string

const (
	OutcomeSuccess  BuildOutcomeLabel = "success"
	OutcomeFailure  BuildOutcomeLabel = "failure"
	OutcomeCanceled BuildOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for build metrics. Implementations
// may forward to Prometheus, OpenTelemetry, etc. All methods must be safe for
// nil receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveBuildDuration(doctype string, d time.Duration)
	IncBuildOutcome(doctype string, outcome BuildOutcomeLabel)
	ObserveCommandDuration(command string, d time.Duration, success bool)
	ObserveCheckoutDuration(project string, d time.Duration, success bool)
	IncSyncResult(target string, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(string, time.Duration)          {}
func (NoopRecorder) IncBuildOutcome(string, BuildOutcomeLabel)           {}
func (NoopRecorder) ObserveCommandDuration(string, time.Duration, bool)  {}
func (NoopRecorder) ObserveCheckoutDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncSyncResult(string, bool)                          {}
