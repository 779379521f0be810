package rete

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible metrics for engine monitoring.
//
// Metrics exposed (all namespaced with "rete_"):
//
//  1. facts (gauge): current working memory size.
//  2. productions (gauge): registered productions.
//  3. conflict_set_size (gauge): tokens across all production nodes.
//  4. asserts_total / retracts_total (counters): working memory churn.
//  5. firings_total (counter): production firings.
//     Labels: production, status (success/error).
//  6. activations_total (counter): node activations during propagation.
//     Labels: node (alpha_memory, beta_memory, join, negative, ncc,
//     ncc_partner, filter, bind, production), side (left/right).
//  7. fire_latency_ms (histogram): action execution duration.
//     Labels: production.
//
// A nil *Metrics is valid for every Set*, Record* and activation-counting
// method and records nothing, so metrics stay strictly opt-in. Disable and
// Enable require a non-nil receiver.
type Metrics struct {
	facts       prometheus.Gauge
	productions prometheus.Gauge
	conflictSet prometheus.Gauge

	asserts     prometheus.Counter
	retracts    prometheus.Counter
	firings     *prometheus.CounterVec
	activations *prometheus.CounterVec

	fireLatency *prometheus.HistogramVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics creates and registers all engine metrics with the provided
// Prometheus registry. Pass prometheus.DefaultRegisterer for the global
// registry, or a private prometheus.NewRegistry() for isolation.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	m := &Metrics{enabled: true}

	m.facts = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "rete",
		Name:      "facts",
		Help:      "Current number of facts in working memory",
	})
	m.productions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "rete",
		Name:      "productions",
		Help:      "Number of productions registered with the engine",
	})
	m.conflictSet = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "rete",
		Name:      "conflict_set_size",
		Help:      "Current number of complete matches across all productions",
	})
	m.asserts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "rete",
		Name:      "asserts_total",
		Help:      "Cumulative count of facts added to working memory",
	})
	m.retracts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "rete",
		Name:      "retracts_total",
		Help:      "Cumulative count of facts removed from working memory",
	})
	m.firings = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rete",
		Name:      "firings_total",
		Help:      "Cumulative count of production firings",
	}, []string{"production", "status"}) // status: success, error
	m.activations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rete",
		Name:      "activations_total",
		Help:      "Node activations performed while propagating working memory changes",
	}, []string{"node", "side"}) // side: left, right
	m.fireLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rete",
		Name:      "fire_latency_ms",
		Help:      "Production action execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	}, []string{"production"})

	return m
}

func (m *Metrics) recording() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// SetFacts updates the working memory size gauge.
func (m *Metrics) SetFacts(n int) {
	if m.recording() {
		m.facts.Set(float64(n))
	}
}

// SetProductions updates the registered productions gauge.
func (m *Metrics) SetProductions(n int) {
	if m.recording() {
		m.productions.Set(float64(n))
	}
}

// SetConflictSet updates the conflict set size gauge.
func (m *Metrics) SetConflictSet(n int) {
	if m.recording() {
		m.conflictSet.Set(float64(n))
	}
}

// RecordAssert increments the assert counter.
func (m *Metrics) RecordAssert() {
	if m.recording() {
		m.asserts.Inc()
	}
}

// RecordRetract increments the retract counter.
func (m *Metrics) RecordRetract() {
	if m.recording() {
		m.retracts.Inc()
	}
}

// RecordFiring records one production firing and its action latency.
func (m *Metrics) RecordFiring(production, status string, latency time.Duration) {
	if m.recording() {
		m.firings.WithLabelValues(production, status).Inc()
		m.fireLatency.WithLabelValues(production).Observe(float64(latency.Milliseconds()))
	}
}

// countActivation counts one node activation; called from inside the
// network on every left or right activation.
func (m *Metrics) countActivation(node, side string) {
	if m.recording() {
		m.activations.WithLabelValues(node, side).Inc()
	}
}

// Disable temporarily disables metric recording (useful for testing).
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable re-enables metric recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
