package emit

import "context"

// NullEmitter implements Emitter by discarding all events.
//
// Use it to disable event emission without changing engine code, or in
// benchmarks where observability overhead is unwanted.
type NullEmitter struct{}

// NewNullEmitter creates a NullEmitter. It is safe for concurrent use and
// has zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}

// EmitBatch discards all events.
func (n *NullEmitter) EmitBatch(_ context.Context, _ []Event) error { return nil }

// Flush is a no-op.
func (n *NullEmitter) Flush(_ context.Context) error { return nil }
