package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SummarizerRequests counts calls to the external summarizer.
	// Labels: kind (weekly/monthly/suggestions), status (success/error)
	SummarizerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revo_summarizer_requests_total",
			Help: "Total number of summarizer calls by kind and status",
		},
		[]string{"kind", "status"},
	)

	// SummarizerDuration observes summarizer call latency in seconds.
	SummarizerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "revo_summarizer_duration_seconds",
			Help:    "Summarizer call duration in seconds by kind",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	// SummariesGenerated counts period summaries persisted.
	// Labels: period (week/month)
	SummariesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revo_summaries_generated_total",
			Help: "Total number of period summaries generated and persisted",
		},
		[]string{"period"},
	)
)

// RecordSummarizerCall records one summarizer round trip.
func RecordSummarizerCall(kind string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SummarizerRequests.WithLabelValues(kind, status).Inc()
	SummarizerDuration.WithLabelValues(kind).Observe(seconds)
}
