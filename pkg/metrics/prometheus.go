package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	analyses      *prometheus.CounterVec
	analysisTime  *prometheus.HistogramVec
	upstreamCalls *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	queryLogs     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// New returns the recorder registered with the default registry. Repeated calls
// share it, since the default registry rejects duplicate collectors.
func New() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewWithRegisterer(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// NewWithRegisterer registers the collectors with reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dwml_analyses_total",
				Help: "Investment analyses by outcome",
			},
			[]string{"outcome"},
		),
		analysisTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dwml_analysis_duration_seconds",
				Help:    "Duration of investment analyses in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"outcome"},
		),
		upstreamCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dwml_upstream_calls_total",
				Help: "Calls to the exchange API by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dwml_opening_average_cache_total",
				Help: "Opening-average cache lookups by result",
			},
			[]string{"result"},
		),
		queryLogs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dwml_query_log_writes_total",
				Help: "Query log writes by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dwml_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// ObserveAnalysis records one analysis. The symbol is deliberately not a label:
// it is user input and would make cardinality unbounded.
func (r *Recorder) ObserveAnalysis(_ string, outcome string, seconds float64) {
	r.analyses.WithLabelValues(outcome).Inc()
	r.analysisTime.WithLabelValues(outcome).Observe(seconds)
}

func (r *Recorder) RecordUpstreamCall(op, outcome string) {
	r.upstreamCalls.WithLabelValues(op, outcome).Inc()
}

// RecordCache records a cache lookup result: hit, miss or error.
func (r *Recorder) RecordCache(result string) {
	r.cacheLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordQueryLog(backend, outcome string) {
	r.queryLogs.WithLabelValues(backend, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
