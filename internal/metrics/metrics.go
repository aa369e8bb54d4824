// Package metrics provides Prometheus metrics for playback negotiation and reporting.
// Labels stay low-cardinality: no item, session or user ids.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NegotiationsTotal counts PlaybackInfo negotiations by outcome and resulting play method.
	NegotiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoplay_negotiations_total",
		Help: "Total number of stream negotiations, by result and play method.",
	}, []string{"result", "play_method"})

	// RenegotiationsTotal counts strategy changes that required a new stream.
	RenegotiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoplay_renegotiations_total",
		Help: "Total number of re-negotiations, by reason.",
	}, []string{"reason"})

	// ReportsTotal counts playback reports sent to the server.
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoplay_reports_total",
		Help: "Total number of playback reports, by event and result.",
	}, []string{"event", "result"})

	// StaleReportsTotal counts reports dropped because their session was replaced.
	StaleReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autoplay_stale_reports_total",
		Help: "Total number of playback reports dropped for a replaced play session.",
	})

	// StrategyTransitionsTotal counts state machine transitions.
	StrategyTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoplay_strategy_transitions_total",
		Help: "Total number of playback strategy transitions, by source and target state.",
	}, []string{"from", "to"})
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDropped = "dropped"
)

// RecordNegotiation counts one negotiation outcome.
func RecordNegotiation(result, playMethod string) {
	if playMethod == "" {
		playMethod = "none"
	}
	NegotiationsTotal.WithLabelValues(result, playMethod).Inc()
}

// RecordRenegotiation counts one re-negotiation.
func RecordRenegotiation(reason string) {
	RenegotiationsTotal.WithLabelValues(reason).Inc()
}

// RecordReport counts one playback report.
func RecordReport(event, result string) {
	ReportsTotal.WithLabelValues(event, result).Inc()
}

// RecordStaleReport counts one dropped stale report.
func RecordStaleReport() {
	StaleReportsTotal.Inc()
}

// RecordTransition counts one strategy transition.
func RecordTransition(from, to string) {
	StrategyTransitionsTotal.WithLabelValues(from, to).Inc()
}

// Router returns a chi router serving /metrics.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
