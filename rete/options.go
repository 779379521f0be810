package rete

import (
	"github.com/dshills/rete-go/rete/emit"
	"github.com/dshills/rete-go/rete/store"
)

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine, err := rete.New(
//	    rete.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
//	    rete.WithMetrics(rete.NewMetrics(registry)),
//	    rete.WithStore(factStore),
//	    rete.WithJournalID("session-42"),
//	)
type Option func(*engineConfig) error

// engineConfig collects options before they are applied to an Engine.
type engineConfig struct {
	emitter    emit.Emitter
	metrics    *Metrics
	store      store.Store
	journalID  string
	maxFirings int
}

// WithEmitter attaches an observability emitter. Engine events
// (fact_assert, fact_retract, production_added, production_fired, ...)
// are sent to it as they happen. Nil disables emission (the default).
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		cfg.emitter = emitter
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection. See Metrics for the
// exposed metric set. Nil disables collection (the default).
func WithMetrics(metrics *Metrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = metrics
		return nil
	}
}

// WithStore attaches a working-memory store. Every successful Assert and
// Retract appends a change to the engine's journal, and SaveSnapshot /
// RestoreSnapshot become available.
func WithStore(s store.Store) Option {
	return func(cfg *engineConfig) error {
		cfg.store = s
		return nil
	}
}

// WithJournalID sets the journal the engine appends its changes to.
// Default: "default". Only meaningful together with WithStore.
func WithJournalID(id string) Option {
	return func(cfg *engineConfig) error {
		if id == "" {
			return &ReteError{Message: "journal id must not be empty", Code: "CONFIG_FAILED"}
		}
		cfg.journalID = id
		return nil
	}
}

// WithMaxFirings caps the number of matches a single Run may fire when the
// caller passes no explicit limit. Default: 0 (unlimited). Use this as a
// safety net against rules that keep re-deriving their own trigger.
func WithMaxFirings(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 0 {
			return &ReteError{Message: "max firings must not be negative", Code: "CONFIG_FAILED"}
		}
		cfg.maxFirings = n
		return nil
	}
}
