package orchestrator_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/askiada/wapm-shell/pkg/shell/model"
	"github.com/askiada/wapm-shell/pkg/shell/program"
	"github.com/askiada/wapm-shell/pkg/shell/resolver"
	"github.com/askiada/wapm-shell/pkg/shell/unit"
)

// recordSink collects everything written to the terminal surface.
type recordSink struct {
	mu     sync.Mutex
	writes []string
}

func (s *recordSink) Write(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, text)

	return nil
}

func (s *recordSink) All() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.writes...)
}

func (s *recordSink) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out string
	for _, w := range s.writes {
		out += w
	}

	return out
}

// stateSink records the orchestrator state observed at each write.
type stateSink struct {
	recordSink
	state func() model.State
	seen  []model.State
}

func (s *stateSink) Write(text string) error {
	s.seen = append(s.seen, s.state())

	return s.recordSink.Write(text)
}

// gaugeFactory wraps a unit factory and tracks how many units are live at
// once. Units retire on end or error; killed units stay counted, which is
// fine for the ceiling assertions.
type gaugeFactory struct {
	inner unit.Factory

	mu      sync.Mutex
	live    int
	max     int
	spawned int
	killed  int
}

func newGaugeFactory(inner unit.Factory) *gaugeFactory {
	return &gaugeFactory{inner: inner}
}

func (f *gaugeFactory) New(spec model.ExecutionSpec, cb unit.Callbacks) unit.Unit {
	f.mu.Lock()
	f.spawned++
	f.live++
	if f.live > f.max {
		f.max = f.live
	}
	f.mu.Unlock()

	retire := func() {
		f.mu.Lock()
		f.live--
		f.mu.Unlock()
	}

	wrapped := cb
	innerEnd := cb.OnEnd
	wrapped.OnEnd = func() {
		retire()
		innerEnd()
	}
	innerError := cb.OnError
	wrapped.OnError = func(msg string) {
		retire()
		innerError(msg)
	}

	return &gaugeUnit{Unit: f.inner.New(spec, wrapped), factory: f}
}

type gaugeUnit struct {
	unit.Unit
	factory *gaugeFactory
}

func (u *gaugeUnit) Kill() {
	u.factory.mu.Lock()
	u.factory.killed++
	u.factory.mu.Unlock()
	u.Unit.Kill()
}

func (f *gaugeFactory) snapshot() (spawned, max, killed int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.spawned, f.max, f.killed
}

// counter fires a channel-backed completion callback and counts invocations.
type counter struct {
	mu    sync.Mutex
	count int
	fired chan struct{}
}

func newCounter() *counter {
	return &counter{fired: make(chan struct{}, 16)}
}

func (c *counter) fn() func() {
	return func() {
		c.mu.Lock()
		c.count++
		c.mu.Unlock()
		c.fired <- struct{}{}
	}
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

func (c *counter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("completion callback never fired")
	}
}

// testPrograms returns the builtins plus a few deterministic helpers used by
// the orchestrator tests.
func testPrograms() map[string]model.Artifact {
	programs := program.Builtins()

	// fail errors out as soon as it starts.
	programs["fail"] = program.Func(func(context.Context, io.Reader, io.Writer, []string, map[string]string) error {
		return failErr("boom")
	})

	// block waits for cancellation.
	programs["block"] = program.Func(func(ctx context.Context, _ io.Reader, _ io.Writer, _ []string, _ map[string]string) error {
		<-ctx.Done()

		return ctx.Err()
	})

	// drip writes two lines with a pause in between, so downstream stages
	// emit while this one is still live.
	programs["drip"] = program.Func(func(ctx context.Context, _ io.Reader, stdout io.Writer, _ []string, _ map[string]string) error {
		if _, err := io.WriteString(stdout, "first\n"); err != nil {
			return err
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		_, err := io.WriteString(stdout, "second\n")

		return err
	})

	return programs
}

func testResolver() resolver.Resolver {
	return resolver.NewRegistry(testPrograms())
}

type failErr string

func (e failErr) Error() string { return string(e) }
