// Package metrics provides observability hooks for build metrics.
//
// Components receive a Recorder through injection and default to NoopRecorder,
// so metrics collection never requires nil checks and costs nothing when
// disabled. The preview server swaps in the Prometheus implementation and
// exposes /metrics.
package metrics

import "time"

// Action labels for document counters.
const (
	ActionRender = "render"
	ActionRemove = "remove"
)

// Recorder defines observability hooks for build and stage metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncDocuments(action string, n int)
	IncDocumentFailures(n int)
	IncBuildOutcome(outcome string) // outcome: success|failed
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncDocuments(string, int)                   {}
func (NoopRecorder) IncDocumentFailures(int)                    {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
