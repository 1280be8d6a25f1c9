package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/llm"
)

const namespace = "orderbot"

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeNotFound  = "not_found"
	OutcomeConflict  = "conflict"
	OutcomeTransient = "transient"
	OutcomePermanent = "permanent"
)

// Metrics holds the Prometheus collectors of the assistant.
type Metrics struct {
	Turns         *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	NodeVisits    *prometheus.CounterVec
	Intents       *prometheus.CounterVec
	CartLines     prometheus.Counter
	LLMCalls      *prometheus.CounterVec
	LLMRetries    *prometheus.CounterVec
	CheckpointOps *prometheus.CounterVec
	Checkouts     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns processed, by resulting status.",
		}, []string{"status"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of one turn, including model calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Dialogue nodes entered.",
		}, []string{"node"}),
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Resolved intents of committed turns.",
		}, []string{"intent"}),
		CartLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_lines_total",
			Help:      "Cart lines appended.",
		}),
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Language model calls, after retries.",
		}, []string{"op", "outcome"}),
		LLMRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Language model attempts that were retried.",
		}, []string{"op"}),
		CheckpointOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_ops_total",
			Help:      "Checkpoint store operations.",
		}, []string{"op", "outcome"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout events handed to the publisher.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Turns, m.TurnDuration, m.NodeVisits, m.Intents, m.CartLines,
			m.LLMCalls, m.LLMRetries, m.CheckpointOps, m.Checkouts,
		)
	}
	return m
}

// ObserveLLMCall implements llm.Observer.
func (m *Metrics) ObserveLLMCall(op string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomePermanent
		if llm.IsTransient(err) {
			outcome = OutcomeTransient
		}
	}
	m.LLMCalls.WithLabelValues(op, outcome).Inc()
}

// ObserveLLMRetry implements llm.Observer.
func (m *Metrics) ObserveLLMRetry(op string) {
	m.LLMRetries.WithLabelValues(op).Inc()
}

// ObserveCheckpoint counts one store operation.
func (m *Metrics) ObserveCheckpoint(op string, err error) {
	m.CheckpointOps.WithLabelValues(op, checkpointOutcome(err)).Inc()
}

func checkpointOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrSessionNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrVersionConflict):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}
