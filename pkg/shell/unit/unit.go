// Package unit provides the execution units a pipeline stage runs in. A unit
// accepts input chunks and asynchronously emits output data, a terminal error
// or a completion event through its callbacks.
//
// Two variants exist, selected once at construction time through a Factory:
// the worker variant runs each unit in its own goroutine with message-passing
// input, the inline variant runs cooperatively on buffered input. Both honour
// the same callback ordering: data chunks in production order, then exactly
// one of end or error, and nothing once the unit is killed.
package unit

import (
	"github.com/askiada/wapm-shell/pkg/shell/model"
)

// Callbacks receives a unit's asynchronous events. All three fields must be
// set before the unit starts.
type Callbacks struct {
	// OnData receives one output chunk. The chunk is owned by the callee.
	OnData func(chunk []byte)
	// OnEnd signals successful completion. Fires at most once.
	OnEnd func()
	// OnError signals failure with a message. Fires at most once.
	OnError func(msg string)
}

// Unit is a spawned pipeline stage.
type Unit interface {
	// ID identifies the unit for logging.
	ID() string
	// Start begins execution. Input written before Start is preserved.
	Start() error
	// Write queues an input chunk. It never blocks and is a no-op after
	// CloseInput or Kill.
	Write(chunk []byte)
	// CloseInput signals that no further input will arrive.
	CloseInput()
	// Kill terminates the unit. Buffered input and unread output are
	// discarded and no further callbacks fire.
	Kill()
}

// Factory creates units. The choice of variant is made once, when the
// factory is constructed, never per spawn.
type Factory interface {
	New(spec model.ExecutionSpec, cb Callbacks) Unit
}

// emitWriter adapts an emit function to io.Writer. Chunks are copied because
// the program may reuse its write buffer.
type emitWriter struct {
	emit func(chunk []byte)
}

func (w *emitWriter) Write(p []byte) (int, error) {
	w.emit(append([]byte(nil), p...))

	return len(p), nil
}
