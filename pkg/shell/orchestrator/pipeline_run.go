package orchestrator

import (
	"bytes"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/askiada/wapm-shell/pkg/shell/model"
	"github.com/askiada/wapm-shell/pkg/shell/unit"
)

type eventKind int

const (
	eventData eventKind = iota
	eventEnd
	eventError
)

// event is one asynchronous report from a unit, tagged with its stage index.
type event struct {
	kind  eventKind
	stage int
	chunk []byte
	msg   string
}

// pipelineRun is the run-scoped state of one pipeline. All mutations happen
// on the orchestrator's event loop goroutine.
type pipelineRun struct {
	id    uuid.UUID
	specs []model.ExecutionSpec
	infos []*model.StageInfo

	// live units are keyed by stage index: units may complete out of order,
	// so positional bookkeeping would misattribute completions.
	live map[int]unit.Unit
	sem  *semaphore.Weighted

	// next is the next stage index to spawn; pending buffers the input of
	// that stage until it exists, pendingEOF records that its producer has
	// already retired.
	next       int
	pending    bytes.Buffer
	pendingEOF bool

	events chan event
	done   chan struct{}
	killc  chan struct{}
}

func newPipelineRun(specs []model.ExecutionSpec, killc chan struct{}) *pipelineRun {
	return &pipelineRun{
		id:     uuid.New(),
		specs:  specs,
		infos:  make([]*model.StageInfo, len(specs)),
		live:   make(map[int]unit.Unit, MaxLiveUnits),
		sem:    semaphore.NewWeighted(MaxLiveUnits),
		events: make(chan event, 16),
		done:   make(chan struct{}),
		killc:  killc,
	}
}

func (r *pipelineRun) last() int {
	return len(r.specs) - 1
}

// post delivers an event to the run loop. Once the run is over, late events
// from dying units are discarded instead of blocking their goroutines.
func (r *pipelineRun) post(ev event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}
