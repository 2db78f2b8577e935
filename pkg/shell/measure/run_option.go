package measure

import (
	"time"

	"github.com/askiada/wapm-shell/pkg/shell/model"
)

type runMeasure struct {
	m Measure
}

// RunMeasure wraps a Measure as a run option so the orchestrator feeds it
// stage output events.
func RunMeasure(m Measure) model.RunOption {
	return &runMeasure{m: m}
}

func (rm *runMeasure) New() error {
	return nil
}

func (rm *runMeasure) PrepareStage(_, stage *model.StageInfo) error {
	if stage == model.EndStage {
		return nil
	}
	rm.m.AddMetric(stage.Label())

	return nil
}

func (rm *runMeasure) OnStageOutput(stage *model.StageInfo, outputBytes int) error {
	mt := rm.m.GetMetric(stage.Label())
	if mt == nil {
		return nil
	}
	mt.AddChunk(outputBytes)

	return nil
}

func (rm *runMeasure) Finish(total time.Duration) error {
	for _, mt := range rm.m.AllMetrics() {
		mt.SetTotalDuration(total)
	}

	return nil
}

var _ model.RunOption = (*runMeasure)(nil)
