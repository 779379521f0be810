package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing structured log output to a writer.
//
// Supports two output modes:
// - Text mode (default): human-readable format with key=value pairs.
// - JSON mode: machine-readable JSON, one event per line (JSONL).
//
// Example text output:
//
//	[fact_assert] step=3 fact=(alice ^parent bob) meta={"conflict_set":1}
//
// Example JSON output:
//
//	{"step":3,"msg":"fact_assert","production":"","fact":"(alice ^parent bob)","meta":{"conflict_set":1}}
//
// Usage:
//
//	// Text output to stdout.
//	emitter := emit.NewLogEmitter(os.Stdout, false)
//
//	// JSON output to file.
//	f, _ := os.Create("events.jsonl")
//	defer func() { _ = f.Close() }()
//	emitter := emit.NewLogEmitter(f, true)
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a new LogEmitter writing to the provided writer.
// A nil writer falls back to os.Stdout. If jsonMode is true, events are
// emitted as JSONL; otherwise as human-readable text.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes an event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		Step       int                    `json:"step"`
		Msg        string                 `json:"msg"`
		Production string                 `json:"production"`
		Fact       string                 `json:"fact"`
		Meta       map[string]interface{} `json:"meta"`
	}{
		Step:       event.Step,
		Msg:        event.Msg,
		Production: event.Production,
		Fact:       event.Fact,
		Meta:       event.Meta,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] step=%d", event.Msg, event.Step)
	if event.Production != "" {
		_, _ = fmt.Fprintf(l.writer, " production=%s", event.Production)
	}
	if event.Fact != "" {
		_, _ = fmt.Fprintf(l.writer, " fact=%s", event.Fact)
	}
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes all events in order. In JSON mode events are written as
// JSONL for easy parsing; in text mode one line per event.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes directly without buffering. Wrap the
// writer with bufio.Writer and flush that if buffered output is needed.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
