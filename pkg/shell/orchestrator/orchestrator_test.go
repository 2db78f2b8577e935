package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/wapm-shell/pkg/shell/model"
	"github.com/askiada/wapm-shell/pkg/shell/orchestrator"
	"github.com/askiada/wapm-shell/pkg/shell/parser"
	"github.com/askiada/wapm-shell/pkg/shell/unit"
)

func TestRunSingleCommand(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	done := newCounter()
	orch := orchestrator.New(testResolver(), snk, orchestrator.WithOnDone(done.fn()))

	err := orch.Run(context.Background(), "echo hello world")
	require.NoError(t, err)
	assert.Equal(t, "hello world\r\n", snk.Text())
	assert.Equal(t, 1, done.value())
	assert.Equal(t, model.StateIdle, orch.State())
}

func TestRunThreeStageComposition(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	orch := orchestrator.New(testResolver(), snk)

	err := orch.Run(context.Background(), "echo abc | rev | upper")
	require.NoError(t, err)
	assert.Equal(t, "CBA\r\n", snk.Text())
}

func TestRunNewlineTranslationOnce(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	orch := orchestrator.New(testResolver(), snk)

	// Intermediate stages pass bytes through untouched; only the final
	// stage's output is rewritten.
	err := orch.Run(context.Background(), "echo a | cat | cat")
	require.NoError(t, err)
	assert.Equal(t, "a\r\n", snk.Text())
}

func TestRunParseErrorSpawnsNothing(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	done := newCounter()
	gauge := newGaugeFactory(unit.NewWorkerFactory())
	orch := orchestrator.New(testResolver(), snk,
		orchestrator.WithOnDone(done.fn()),
		orchestrator.WithUnitFactory(gauge),
	)

	err := orch.Run(context.Background(), "a; b")
	require.Error(t, err)

	var perr *parser.ParseError
	assert.ErrorAs(t, err, &perr)

	spawned, _, _ := gauge.snapshot()
	assert.Zero(t, spawned)
	assert.Equal(t, []string{"wapm shell: parse error (expected a single statement)\r\n"}, snk.All())
	assert.Equal(t, 1, done.value())
	assert.Equal(t, model.StateIdle, orch.State())
}

func TestRunResolutionErrorSpawnsNothing(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	done := newCounter()
	gauge := newGaugeFactory(unit.NewWorkerFactory())
	orch := orchestrator.New(testResolver(), snk,
		orchestrator.WithOnDone(done.fn()),
		orchestrator.WithUnitFactory(gauge),
	)

	err := orch.Run(context.Background(), "echo hi | nosuchcmd")
	require.Error(t, err)

	spawned, _, _ := gauge.snapshot()
	assert.Zero(t, spawned)
	require.Len(t, snk.All(), 1)
	assert.Contains(t, snk.All()[0], "wapm shell: parse error (")
	assert.Contains(t, snk.All()[0], "nosuchcmd")
	assert.Equal(t, 1, done.value())
}

func TestRunConcurrencyCeiling(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	gauge := newGaugeFactory(unit.NewWorkerFactory())
	orch := orchestrator.New(testResolver(), snk, orchestrator.WithUnitFactory(gauge))

	err := orch.Run(context.Background(), "drip | cat | cat | upper | cat")
	require.NoError(t, err)

	spawned, maxLive, _ := gauge.snapshot()
	assert.Equal(t, 5, spawned)
	assert.LessOrEqual(t, maxLive, orchestrator.MaxLiveUnits)
	assert.Equal(t, "FIRST\r\nSECOND\r\n", snk.Text())
}

func TestRunBuffersOutputForUnspawnedStage(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	orch := orchestrator.New(testResolver(), snk)

	// upper emits "FIRST" while drip is still live, so the chunk is
	// buffered until the third stage spawns; order must survive the
	// buffered handoff.
	err := orch.Run(context.Background(), "drip | upper | cat")
	require.NoError(t, err)
	assert.Equal(t, "FIRST\r\nSECOND\r\n", snk.Text())
}

func TestRunLastStageEndsBeforeProducer(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	done := newCounter()
	gauge := newGaugeFactory(unit.NewWorkerFactory())
	orch := orchestrator.New(testResolver(), snk,
		orchestrator.WithOnDone(done.fn()),
		orchestrator.WithUnitFactory(gauge),
	)

	// The final stage ignores its stdin and ends while the producer is
	// still running; completion must terminate the producer rather than
	// leak it into the next run.
	err := orch.Run(context.Background(), "block | echo hi")
	require.NoError(t, err)
	assert.Equal(t, "hi\r\n", snk.Text())

	spawned, _, killed := gauge.snapshot()
	assert.Equal(t, 2, spawned)
	assert.Equal(t, 1, killed, "the producer must not outlive the run")
	assert.Equal(t, 1, done.value())
	assert.Equal(t, model.StateIdle, orch.State())
}

func TestRunParseErrorKeepsStateIdle(t *testing.T) {
	t.Parallel()

	snk := &stateSink{}
	var orch *orchestrator.Orchestrator
	snk.state = func() model.State { return orch.State() }
	orch = orchestrator.New(testResolver(), snk)

	err := orch.Run(context.Background(), "a; b")
	require.Error(t, err)

	// The state observed while the diagnostic is written is still Idle.
	require.Len(t, snk.seen, 1)
	assert.Equal(t, model.StateIdle, snk.seen[0])
	assert.Equal(t, model.StateIdle, orch.State())
}

func TestRunStageError(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	done := newCounter()
	gauge := newGaugeFactory(unit.NewWorkerFactory())
	orch := orchestrator.New(testResolver(), snk,
		orchestrator.WithOnDone(done.fn()),
		orchestrator.WithUnitFactory(gauge),
	)

	err := orch.Run(context.Background(), "block | fail | cat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.Equal(t, []string{"Program fail: boom\r\n"}, snk.All())
	assert.Equal(t, 1, done.value())
	assert.Equal(t, model.StateIdle, orch.State())

	spawned, _, killed := gauge.snapshot()
	assert.Equal(t, 2, spawned)
	assert.Equal(t, 1, killed, "the still-live stage must be terminated")
}

func TestKillWhileIdleIsNoop(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	done := newCounter()
	orch := orchestrator.New(testResolver(), snk, orchestrator.WithOnDone(done.fn()))

	orch.Kill()
	assert.Equal(t, model.StateIdle, orch.State())
	assert.Zero(t, done.value())

	require.NoError(t, orch.Run(context.Background(), "echo ok"))
	assert.Equal(t, 1, done.value())

	// A kill after the run ended must not fire the callback again.
	orch.Kill()
	assert.Equal(t, 1, done.value())
}

func TestKillTerminatesRun(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	done := newCounter()
	gauge := newGaugeFactory(unit.NewWorkerFactory())
	orch := orchestrator.New(testResolver(), snk,
		orchestrator.WithOnDone(done.fn()),
		orchestrator.WithUnitFactory(gauge),
	)

	errc := make(chan error, 1)
	go func() {
		errc <- orch.Run(context.Background(), "block | cat")
	}()

	require.Eventually(t, func() bool {
		return orch.State() == model.StateRunning
	}, 5*time.Second, 5*time.Millisecond)

	orch.Kill()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, orchestrator.ErrKilled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after kill")
	}

	done.wait(t)
	assert.Equal(t, 1, done.value())
	assert.Equal(t, model.StateIdle, orch.State())

	_, _, killed := gauge.snapshot()
	assert.Equal(t, 2, killed)
}

func TestRunContextCancellation(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	orch := orchestrator.New(testResolver(), snk)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- orch.Run(ctx, "block")
	}()

	require.Eventually(t, func() bool {
		return orch.State() == model.StateRunning
	}, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after context cancellation")
	}
}

func TestRunRejectsOverlappingRun(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	orch := orchestrator.New(testResolver(), snk)

	errc := make(chan error, 1)
	go func() {
		errc <- orch.Run(context.Background(), "block")
	}()

	require.Eventually(t, func() bool {
		return orch.State() == model.StateRunning
	}, 5*time.Second, 5*time.Millisecond)

	err := orch.Run(context.Background(), "echo nope")
	assert.ErrorIs(t, err, orchestrator.ErrPipelineActive)

	orch.Kill()
	<-errc
}

func TestRunInlineFactory(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	orch := orchestrator.New(testResolver(), snk,
		orchestrator.WithUnitFactory(unit.NewInlineFactory()),
	)

	err := orch.Run(context.Background(), "echo abc | rev | upper")
	require.NoError(t, err)
	assert.Equal(t, "CBA\r\n", snk.Text())
}

func TestRunSequentialRuns(t *testing.T) {
	t.Parallel()

	snk := &recordSink{}
	done := newCounter()
	orch := orchestrator.New(testResolver(), snk, orchestrator.WithOnDone(done.fn()))

	require.NoError(t, orch.Run(context.Background(), "echo one"))
	require.NoError(t, orch.Run(context.Background(), "echo two | upper"))
	assert.Equal(t, "one\r\nTWO\r\n", snk.Text())
	assert.Equal(t, 2, done.value())
}
