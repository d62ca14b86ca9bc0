// Package observability holds the Prometheus instruments of the note pipeline.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LLMAttempts      *prometheus.CounterVec
	LLMLatency       *prometheus.HistogramVec
	ParseOutcomes    *prometheus.CounterVec
	QualityFallbacks prometheus.Counter
	NotesSaved       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments on reg, or on a fresh registry when reg
// is nil. The default registry is never used so tests can build many sets.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	m := &Metrics{
		LLMAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_attempts_total",
			Help:      "LLM requests by wire protocol and outcome.",
		}, []string{"protocol", "outcome"}),
		LLMLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_attempt_seconds",
			Help:      "Latency of a single LLM attempt.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180},
		}, []string{"protocol"}),
		ParseOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dual_output_parse_total",
			Help:      "Dual-output parse results by outcome.",
		}, []string{"outcome"}),
		QualityFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_floor_fallbacks_total",
			Help:      "Summaries replaced by the raw transcript for being too short.",
		}),
		NotesSaved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_saved_total",
			Help:      "Note writes by mode and outcome.",
		}, []string{"mode", "outcome"}),
		gatherer: reg,
	}
	return m
}

// ObserveLLMAttempt records one protocol attempt.
func (m *Metrics) ObserveLLMAttempt(protocol string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMAttempts.WithLabelValues(protocol, outcome(ok)).Inc()
	m.LLMLatency.WithLabelValues(protocol).Observe(d.Seconds())
}

// ObserveParse records how a model response was parsed.
func (m *Metrics) ObserveParse(kind string) {
	if m == nil {
		return
	}
	m.ParseOutcomes.WithLabelValues(kind).Inc()
}

// ObserveQualityFallback records a transcript substitution.
func (m *Metrics) ObserveQualityFallback() {
	if m == nil {
		return
	}
	m.QualityFallbacks.Inc()
}

// ObserveSave records a note write attempt.
func (m *Metrics) ObserveSave(mode string, ok bool) {
	if m == nil {
		return
	}
	m.NotesSaved.WithLabelValues(mode, outcome(ok)).Inc()
}

// Handler serves the registry the metrics were registered on.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
