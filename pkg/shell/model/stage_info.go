package model

import (
	"fmt"
	"time"
)

// StageInfo identifies one stage of a run for observers such as the drawer
// and the measure option.
type StageInfo struct {
	// Index is the stage position, 0 for the first stage.
	Index int
	// Name is the primary command of the stage.
	Name string
}

// Label returns a run-unique label for the stage. Stage names may repeat
// within a pipeline, so the label includes the index.
func (s *StageInfo) Label() string {
	if s.Index < 0 {
		return s.Name
	}

	return fmt.Sprintf("%d:%s", s.Index, s.Name)
}

// StartStage and EndStage delimit the stage graph of a run.
var (
	StartStage = &StageInfo{Index: -1, Name: "start"}
	EndStage   = &StageInfo{Index: -1, Name: "end"}
)

// RunOption defines the interface for options observing a pipeline run.
type RunOption interface {
	// New initialises the option before the first run.
	New() error
	// PrepareStage runs when a stage is added to the run, before it spawns.
	PrepareStage(parent, stage *StageInfo) error
	// OnStageOutput runs every time a stage emits a chunk of output.
	OnStageOutput(stage *StageInfo, outputBytes int) error
	// Finish runs after the run reaches a terminal state.
	Finish(total time.Duration) error
}
