package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	buildDuration    *prom.HistogramVec
	buildOutcome     *prom.CounterVec
	commandDuration  *prom.HistogramVec
	checkoutDuration *prom.HistogramVec
	syncResults      *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docsforge",
			Name:      "build_duration_seconds",
			Help:      "Total build duration per doc tool",
			Buckets:   prom.DefBuckets,
		}, []string{"doctype"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsforge",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"doctype", "outcome"})
		pr.commandDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docsforge",
			Name:      "command_duration_seconds",
			Help:      "Duration of individual build environment commands",
			Buckets:   prom.DefBuckets,
		}, []string{"command", "result"})
		pr.checkoutDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docsforge",
			Name:      "checkout_duration_seconds",
			Help:      "Duration of repository checkout operations",
			Buckets:   prom.DefBuckets,
		}, []string{"project", "result"})
		pr.syncResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsforge",
			Name:      "sync_results_total",
			Help:      "Artifact sync results by target and outcome",
		}, []string{"target", "result"})
		reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.commandDuration, pr.checkoutDuration, pr.syncResults)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(doctype string, d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(doctype).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(doctype string, outcome BuildOutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(doctype, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveCommandDuration(command string, d time.Duration, success bool) {
	if p == nil || p.commandDuration == nil {
		return
	}
	p.commandDuration.WithLabelValues(command, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveCheckoutDuration(project string, d time.Duration, success bool) {
	if p == nil || p.checkoutDuration == nil {
		return
	}
	p.checkoutDuration.WithLabelValues(project, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSyncResult(target string, success bool) {
	if p == nil || p.syncResults == nil {
		return
	}
	p.syncResults.WithLabelValues(target, resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
