package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes run-level counters and timings.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	VerdictsTotal  *prometheus.CounterVec
	PublishTotal   *prometheus.CounterVec
	EvaluationSecs prometheus.Histogram
	ResumedEvals   prometheus.Counter
	BatchesPerRun  prometheus.Histogram
}

// NewMetrics registers the engine metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Name:      "runs_total",
			Help:      "Audit runs by outcome.",
		}, []string{"outcome"}),
		VerdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Name:      "verdicts_total",
			Help:      "Verdicts by result.",
		}, []string{"result"}),
		PublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Name:      "publish_total",
			Help:      "Publishing agent invocations by status.",
		}, []string{"status"}),
		EvaluationSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "driftwatch",
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of one evaluation agent call.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ResumedEvals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Name:      "resumed_evaluations_total",
			Help:      "Evaluations skipped on resume because a checkpoint existed.",
		}),
		BatchesPerRun: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "driftwatch",
			Name:      "batches_per_run",
			Help:      "Sequential evaluation batches per run.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
	}
}

// verdictResult maps a verdict to its metric label.
func verdictResult(v Verdict) string {
	switch {
	case v.Failed:
		return "failed"
	case v.NeedsUpdate:
		return "update"
	default:
		return "no_update"
	}
}
