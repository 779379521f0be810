// Package rete provides the core forward-chaining production-rule engine for Rete-Go.
package rete

import "errors"

// ErrVariableInFact indicates that an asserted fact contains a variable field.
// Facts are ground triples; any field beginning with "$" is rejected at assert.
var ErrVariableInFact = errors.New("fact fields must be ground (no leading $)")

// ErrUnboundVariable indicates that a condition references a variable that is.
// never bound by an earlier positive pattern in the same disjunct. Reported.
// when the production is compiled, before the network is touched.
var ErrUnboundVariable = errors.New("condition references an unbound variable")

// ErrRebindVariable indicates that a pattern or bind element would introduce a.
// variable that an earlier bind element already computed. Bound expression.
// values never appear on the token's fact chain, so no equality test can.
// express the join and the reuse is rejected at compile time.
var ErrRebindVariable = errors.New("variable is already bound by a bind element")

// ErrNoAction indicates that Fire was invoked on a production that was.
// registered without an action body.
var ErrNoAction = errors.New("production has no action")

// ErrDuplicateProduction indicates that a production with the same name is.
// already registered with the engine.
var ErrDuplicateProduction = errors.New("production name already registered")

// ErrUnknownProduction indicates that the production is not registered with.
// the engine.
var ErrUnknownProduction = errors.New("production is not registered")

// ReteError represents a structured engine error.
// It provides machine-readable codes for programmatic handling alongside
// the wrapped cause, and supports errors.Is/errors.As through Unwrap.
type ReteError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling,
	// e.g. "INVALID_FACT", "COMPILE_FAILED", "FIRE_FAILED", "STORE_FAILED".
	Code string

	// Production identifies which production produced this error, if any.
	Production string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ReteError) Error() string {
	if e.Production != "" {
		return "production " + e.Production + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *ReteError) Unwrap() error {
	return e.Cause
}
