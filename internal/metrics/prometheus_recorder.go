package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	documents     *prom.CounterVec
	failures      prom.Counter
	buildOutcome  *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the build metrics on reg.
// A nil reg gets its own private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "sitebuilder",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "sitebuilder",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		documents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "documents_total",
			Help:      "Documents processed by action",
		}, []string{"action"}),
		failures: prom.NewCounter(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "document_failures_total",
			Help:      "Documents whose render failed",
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.documents, pr.failures, pr.buildOutcome)
	return pr
}

func (pr *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	pr.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	pr.buildDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncDocuments(action string, n int) {
	if n > 0 {
		pr.documents.WithLabelValues(action).Add(float64(n))
	}
}

func (pr *PrometheusRecorder) IncDocumentFailures(n int) {
	if n > 0 {
		pr.failures.Add(float64(n))
	}
}

func (pr *PrometheusRecorder) IncBuildOutcome(outcome string) {
	pr.buildOutcome.WithLabelValues(outcome).Inc()
}
