package unit

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/askiada/wapm-shell/pkg/shell/model"
)

// WorkerFactory creates isolated units. Each unit runs its program in a
// dedicated goroutine and receives input through message passing; Kill
// cancels the unit's context and reclaims the goroutine.
type WorkerFactory struct{}

// NewWorkerFactory creates a WorkerFactory.
func NewWorkerFactory() *WorkerFactory {
	return &WorkerFactory{}
}

// New implements Factory.
func (f *WorkerFactory) New(spec model.ExecutionSpec, cb Callbacks) Unit {
	ctx, cancel := context.WithCancel(context.Background())

	return &worker{
		id:     uuid.New(),
		spec:   spec,
		cb:     cb,
		in:     newInbox(),
		ctx:    ctx,
		cancel: cancel,
	}
}

type worker struct {
	id     uuid.UUID
	spec   model.ExecutionSpec
	cb     Callbacks
	in     *inbox
	ctx    context.Context
	cancel context.CancelFunc
	killed atomic.Bool
}

func (u *worker) ID() string {
	return u.id.String()
}

func (u *worker) Start() error {
	go u.run()

	return nil
}

func (u *worker) run() {
	stdin, feed := io.Pipe()
	go u.feed(feed)

	stdout := &emitWriter{emit: func(chunk []byte) {
		if !u.killed.Load() {
			u.cb.OnData(chunk)
		}
	}}

	err := u.spec.Artifact.Run(u.ctx, stdin, stdout, u.spec.Args, u.spec.Env)

	// Unblocks the feeder if the program returned without draining its
	// input, or before the input was ever closed.
	_ = stdin.Close()
	u.in.close()

	if u.killed.Load() {
		return
	}
	if err != nil {
		u.cb.OnError(err.Error())

		return
	}
	u.cb.OnEnd()
}

func (u *worker) feed(pw *io.PipeWriter) {
	defer func() {
		_ = pw.Close()
	}()
	for {
		chunk, ok := u.in.read()
		if !ok {
			return
		}
		if _, err := pw.Write(chunk); err != nil {
			return
		}
	}
}

func (u *worker) Write(chunk []byte) {
	u.in.put(chunk)
}

func (u *worker) CloseInput() {
	u.in.close()
}

func (u *worker) Kill() {
	u.killed.Store(true)
	u.cancel()
	u.in.close()
}
