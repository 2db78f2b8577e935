package unit

import "sync"

// inbox is an unbounded ordered queue of input chunks. Writers never block,
// so the orchestrator can keep routing data while a unit is slow.
type inbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks [][]byte
	closed bool
}

func newInbox() *inbox {
	b := &inbox{}
	b.cond = sync.NewCond(&b.mu)

	return b
}

func (b *inbox) put(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.chunks = append(b.chunks, append([]byte(nil), chunk...))
	b.cond.Signal()
}

func (b *inbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// read blocks until a chunk is available or the inbox is closed and drained.
func (b *inbox) read() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.chunks) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.chunks) == 0 {
		return nil, false
	}
	chunk := b.chunks[0]
	b.chunks = b.chunks[1:]

	return chunk, true
}
