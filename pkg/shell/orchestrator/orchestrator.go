// Package orchestrator drives one pipeline at a time: it turns a command
// line into a bounded set of concurrently running execution units, routes
// bytes between them in pipeline order and reports completion to its caller.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/wapm-shell/internal/logging"
	"github.com/askiada/wapm-shell/pkg/shell/model"
	"github.com/askiada/wapm-shell/pkg/shell/parser"
	"github.com/askiada/wapm-shell/pkg/shell/resolver"
	"github.com/askiada/wapm-shell/pkg/shell/sink"
	"github.com/askiada/wapm-shell/pkg/shell/unit"
)

// MaxLiveUnits is the concurrency ceiling: at most this many execution units
// are live at any instant. Two stages materialised at once keeps a producer
// overlapped with its consumer while bounding memory and execution contexts.
const MaxLiveUnits = 2

var (
	// ErrPipelineActive is returned by Run when a pipeline is already in flight.
	ErrPipelineActive = errors.New("a pipeline is already running")
	// ErrKilled is returned by Run when the pipeline was killed.
	ErrKilled = errors.New("pipeline killed")
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithUnitFactory selects the execution-unit variant. The choice is made
// here, once, by the host; it is never branched on per spawn.
func WithUnitFactory(f unit.Factory) Option {
	return func(o *Orchestrator) {
		o.factory = f
	}
}

// WithOnDone registers a callback invoked exactly once per Run invocation,
// whatever the outcome. It signals readiness for the next command line.
func WithOnDone(fn func()) Option {
	return func(o *Orchestrator) {
		o.onDone = fn
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// WithRunOptions registers run observers such as the drawer and the measure.
func WithRunOptions(opts ...model.RunOption) Option {
	return func(o *Orchestrator) {
		o.opts = append(o.opts, opts...)
	}
}

// Orchestrator owns one in-flight pipeline.
type Orchestrator struct {
	builder *Builder
	factory unit.Factory
	sink    sink.Sink
	log     *slog.Logger
	onDone  func()
	opts    []model.RunOption

	mu    sync.Mutex
	state model.State
	busy  bool
	kill  func()
}

// New creates an Orchestrator resolving commands through res and writing
// final-stage output and diagnostics to snk. The default unit variant is the
// isolated worker.
func New(res resolver.Resolver, snk sink.Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		builder: NewBuilder(res),
		factory: unit.NewWorkerFactory(),
		sink:    snk,
		log:     logging.Nop(),
		state:   model.StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	for _, ro := range o.opts {
		if err := ro.New(); err != nil {
			o.log.Warn("run option init failed", slog.String("error", err.Error()))
		}
	}

	return o
}

// State returns the orchestrator state: Running while a pipeline is in
// flight, Idle otherwise.
func (o *Orchestrator) State() model.State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// Run executes one command line and blocks until the pipeline reaches a
// terminal state. Diagnostics go to the sink; the returned error restates
// the failure for the caller. A parse or resolution failure spawns nothing.
func (o *Orchestrator) Run(ctx context.Context, line string) error {
	killc := make(chan struct{})
	var killOnce sync.Once

	// The claim is separate from the observable state: a line that fails to
	// parse never shows as Running, yet overlapping calls are still rejected.
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()

		return ErrPipelineActive
	}
	o.busy = true
	// Registered together with the claim so a Kill racing the start of the
	// run is never lost.
	o.kill = func() {
		killOnce.Do(func() {
			close(killc)
		})
	}
	o.mu.Unlock()

	final, err := o.runLine(ctx, line, killc)

	o.mu.Lock()
	o.kill = nil
	o.busy = false
	o.state = model.StateIdle
	o.mu.Unlock()

	o.log.Debug("run finished", slog.String("state", final.String()))
	// Single exit path: the completion callback fires exactly once per Run,
	// whichever way the run terminated.
	if o.onDone != nil {
		o.onDone()
	}

	return err
}

// Kill terminates the in-flight pipeline. It is a no-op when no pipeline is
// running and never fires the completion callback on its own.
func (o *Orchestrator) Kill() {
	o.mu.Lock()
	kill := o.kill
	o.mu.Unlock()

	if kill != nil {
		kill()
	}
}

func (o *Orchestrator) runLine(ctx context.Context, line string, killc chan struct{}) (model.State, error) {
	cmd, err := parser.Parse(line)
	if err != nil {
		o.reportParse(err)

		return model.StateIdle, err
	}
	specs, err := o.builder.Build(ctx, cmd)
	if err != nil {
		// Resolution failures report on the parse boundary: nothing spawned.
		o.reportParse(err)

		return model.StateIdle, err
	}

	r := newPipelineRun(specs, killc)
	defer close(r.done)

	if err := o.prepareStages(r); err != nil {
		o.reportParse(err)

		return model.StateIdle, err
	}

	o.mu.Lock()
	o.state = model.StateRunning
	o.mu.Unlock()

	start := time.Now()
	defer func() {
		o.finishOpts(time.Since(start))
	}()

	o.log.Debug("pipeline running",
		slog.String("run", r.id.String()),
		slog.Int("stages", len(specs)),
	)
	o.trySpawnNext(r)

	for {
		select {
		case <-ctx.Done():
			o.killAll(r)

			return model.StateKilled, errors.Wrap(ctx.Err(), "pipeline")
		case <-r.killc:
			o.killAll(r)

			return model.StateKilled, ErrKilled
		case ev := <-r.events:
			switch ev.kind {
			case eventData:
				if err := o.onData(r, ev.stage, ev.chunk); err != nil {
					o.killAll(r)

					return model.StateErrored, err
				}
			case eventEnd:
				if o.onEnd(r, ev.stage) {
					return model.StateCompleted, nil
				}
			case eventError:
				err := o.onError(r, ev.stage, ev.msg)

				return model.StateErrored, err
			}
		}
	}
}

// onData applies the routing rule for one output chunk of stage i.
func (o *Orchestrator) onData(r *pipelineRun, i int, chunk []byte) error {
	o.stageOutput(r, i, len(chunk))

	if i == r.last() {
		// Final stage output is decoded and rewritten to the terminal's
		// carriage-return/line-feed convention, exactly once, here.
		text := strings.ReplaceAll(string(chunk), "\n", "\r\n")

		return o.sink.Write(text)
	}

	next := i + 1
	if u, ok := r.live[next]; ok {
		u.Write(chunk)

		return nil
	}
	if next == r.next {
		// The consumer does not exist yet.
		r.pending.Write(chunk)

		return nil
	}
	o.log.Debug("dropping chunk for retired stage", slog.Int("stage", next))

	return nil
}

// onEnd retires stage i and advances the pipeline. It reports whether the
// whole run completed.
func (o *Orchestrator) onEnd(r *pipelineRun, i int) bool {
	if _, ok := r.live[i]; !ok {
		return false
	}
	delete(r.live, i)
	r.sem.Release(1)
	o.log.Debug("stage ended", slog.Int("stage", i))

	if i == r.last() {
		// The last stage can finish while upstream producers are still
		// running; their output has nowhere to go, so the run terminates
		// them instead of letting their handles outlive it.
		o.killAll(r)

		return true
	}

	if dn, ok := r.live[i+1]; ok {
		dn.CloseInput()
	} else if i+1 == r.next {
		// The consumer has not spawned yet; its input is already complete.
		r.pendingEOF = true
	}
	o.trySpawnNext(r)

	return false
}

// onError reports the failing stage, kills the rest of the pipeline and
// returns the run error.
func (o *Orchestrator) onError(r *pipelineRun, i int, msg string) error {
	name := r.specs[i].Name()
	if werr := o.sink.Write(fmt.Sprintf("Program %s: %s\r\n", name, msg)); werr != nil {
		o.log.Warn("unable to write diagnostic", slog.String("error", werr.Error()))
	}
	// The failing unit already terminated on its own; only the others need
	// killing.
	delete(r.live, i)
	o.killAll(r)

	return errors.Errorf("program %s: %s", name, msg)
}

// trySpawnNext spawns stages, in ascending index order, while the live-unit
// count is below the ceiling and stages remain.
func (o *Orchestrator) trySpawnNext(r *pipelineRun) {
	for r.next < len(r.specs) && r.sem.TryAcquire(1) {
		o.spawn(r, r.next)
	}
}

// spawn instantiates and starts the unit for stage i, binding its callbacks
// to the stage index and handing it any pending input.
func (o *Orchestrator) spawn(r *pipelineRun, i int) {
	spec := r.specs[i]
	idx := i
	cb := unit.Callbacks{
		OnData: func(chunk []byte) {
			r.post(event{kind: eventData, stage: idx, chunk: chunk})
		},
		OnEnd: func() {
			r.post(event{kind: eventEnd, stage: idx})
		},
		OnError: func(msg string) {
			r.post(event{kind: eventError, stage: idx, msg: msg})
		},
	}

	u := o.factory.New(spec, cb)
	if r.pending.Len() > 0 {
		u.Write(r.pending.Bytes())
		r.pending.Reset()
	}
	r.live[idx] = u
	if err := u.Start(); err != nil {
		go r.post(event{kind: eventError, stage: idx, msg: err.Error()})
	}
	if i == 0 || r.pendingEOF {
		// First stage has no producer; later stages close immediately when
		// their producer retired before they spawned.
		r.pendingEOF = false
		u.CloseInput()
	}
	r.next = i + 1

	o.log.Debug("spawned stage",
		slog.Int("stage", i),
		slog.String("cmd", spec.Name()),
		slog.String("unit", u.ID()),
	)
}

// killAll terminates every live unit and clears the run state. Buffered
// input and unread output are discarded; no flush is attempted.
func (o *Orchestrator) killAll(r *pipelineRun) {
	for i, u := range r.live {
		u.Kill()
		delete(r.live, i)
	}
	r.specs = nil
	r.pending.Reset()
}

func (o *Orchestrator) reportParse(err error) {
	msg := err.Error()
	var perr *parser.ParseError
	if errors.As(err, &perr) {
		msg = perr.Msg
	}
	if werr := o.sink.Write(fmt.Sprintf("wapm shell: parse error (%s)\r\n", msg)); werr != nil {
		o.log.Warn("unable to write diagnostic", slog.String("error", werr.Error()))
	}
}

func (o *Orchestrator) prepareStages(r *pipelineRun) error {
	parent := model.StartStage
	for i, spec := range r.specs {
		info := &model.StageInfo{Index: i, Name: spec.Name()}
		r.infos[i] = info
		for _, ro := range o.opts {
			if err := ro.PrepareStage(parent, info); err != nil {
				return errors.Wrap(err, "unable to prepare stage")
			}
		}
		parent = info
	}
	for _, ro := range o.opts {
		if err := ro.PrepareStage(parent, model.EndStage); err != nil {
			return errors.Wrap(err, "unable to prepare stage")
		}
	}

	return nil
}

func (o *Orchestrator) stageOutput(r *pipelineRun, i, size int) {
	for _, ro := range o.opts {
		if err := ro.OnStageOutput(r.infos[i], size); err != nil {
			o.log.Warn("run option output hook failed", slog.String("error", err.Error()))
		}
	}
}

func (o *Orchestrator) finishOpts(total time.Duration) {
	for _, ro := range o.opts {
		if err := ro.Finish(total); err != nil {
			o.log.Warn("run option finish failed", slog.String("error", err.Error()))
		}
	}
}
