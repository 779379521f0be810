// Package emit provides event emission and observability for the rule engine.
package emit

import "context"

// Emitter receives and processes observability events from engine activity.
//
// Emitters enable pluggable observability backends:
// - Logging: stdout, files, syslog.
// - Distributed tracing: OpenTelemetry, Jaeger, Zipkin.
// - In-memory capture for tests and debugging.
//
// Implementations should be:
// - Non-blocking: Avoid slowing down match propagation.
// - Resilient: Handle failures gracefully (don't crash the engine).
//
// Common patterns:
// - Buffering: Collect events and flush in batches.
// - Filtering: Only emit events matching criteria (e.g., firings only).
// - Multi-emit: Fan out to multiple backends.
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	//
	// Emit should not panic and should not block engine operations.
	// Errors should be handled internally.
	Emit(event Event)

	// EmitBatch sends multiple events in a single operation.
	//
	// Batching amortises per-event overhead when draining captured
	// history or forwarding to slow backends. Implementations should
	// process events in order and handle partial failures gracefully.
	//
	// Returns error only on catastrophic failures; individual event
	// failures should be logged and skipped.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush ensures all buffered events are sent to the backend.
	//
	// Call before shutdown to prevent event loss. Implementations should
	// respect context cancellation and be safe to call multiple times.
	Flush(ctx context.Context) error
}
