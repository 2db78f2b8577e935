package unit

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/askiada/wapm-shell/pkg/shell/model"
)

// InlineFactory creates co-located units. Input is buffered until the
// producer retires, then the program runs over it with callbacks invoked
// directly, without cross-context messaging. Kill is advisory: it cancels
// the unit's context and the program stops at its next read or write.
type InlineFactory struct{}

// NewInlineFactory creates an InlineFactory.
func NewInlineFactory() *InlineFactory {
	return &InlineFactory{}
}

// New implements Factory.
func (f *InlineFactory) New(spec model.ExecutionSpec, cb Callbacks) Unit {
	ctx, cancel := context.WithCancel(context.Background())

	return &inline{
		id:        uuid.New(),
		spec:      spec,
		cb:        cb,
		inputDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

type inline struct {
	id        uuid.UUID
	spec      model.ExecutionSpec
	cb        Callbacks
	ctx       context.Context
	cancel    context.CancelFunc
	killed    atomic.Bool
	closeOnce sync.Once
	inputDone chan struct{}

	mu  sync.Mutex
	buf bytes.Buffer
}

func (u *inline) ID() string {
	return u.id.String()
}

func (u *inline) Start() error {
	go u.run()

	return nil
}

func (u *inline) run() {
	select {
	case <-u.inputDone:
	case <-u.ctx.Done():
		return
	}

	u.mu.Lock()
	input := append([]byte(nil), u.buf.Bytes()...)
	u.mu.Unlock()

	stdout := &emitWriter{emit: func(chunk []byte) {
		if !u.killed.Load() {
			u.cb.OnData(chunk)
		}
	}}

	err := u.spec.Artifact.Run(u.ctx, bytes.NewReader(input), stdout, u.spec.Args, u.spec.Env)

	if u.killed.Load() {
		return
	}
	if err != nil {
		u.cb.OnError(err.Error())

		return
	}
	u.cb.OnEnd()
}

func (u *inline) Write(chunk []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	select {
	case <-u.inputDone:
		return
	default:
	}
	_, _ = u.buf.Write(chunk)
}

func (u *inline) CloseInput() {
	u.closeOnce.Do(func() {
		close(u.inputDone)
	})
}

func (u *inline) Kill() {
	u.killed.Store(true)
	u.cancel()
	u.CloseInput()
}
