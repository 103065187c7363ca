package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline and stream relay Prometheus metrics.
var (
	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "schemachat",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each chat pipeline stage",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	PipelineFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schemachat",
			Name:      "pipeline_failures_total",
			Help:      "Fatal pipeline failures by stage",
		},
		[]string{"stage"},
	)

	ContextTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "schemachat",
			Name:      "context_tokens",
			Help:      "Token count consumed while assembling the context block",
			Buckets:   []float64{0, 100, 250, 500, 750, 1000, 1250, 1500, 2000},
		},
	)

	ContextRecords = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "schemachat",
			Name:      "context_records",
			Help:      "Records retrieved and included per request",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 20},
		},
		[]string{"kind"}, // "retrieved" / "included"
	)

	RelayStreamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schemachat",
			Name:      "relay_streams_total",
			Help:      "Relayed completion streams by terminal state",
		},
		[]string{"outcome"}, // "closed" / "errored" / "truncated" / "canceled"
	)

	RelayBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "schemachat",
			Name:      "relay_bytes_total",
			Help:      "Text delta bytes emitted to consumers",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(PipelineFailuresTotal)
	prometheus.MustRegister(ContextTokens)
	prometheus.MustRegister(ContextRecords)
	prometheus.MustRegister(RelayStreamsTotal)
	prometheus.MustRegister(RelayBytesTotal)
	pipelineMetricsRegistered = true
}
