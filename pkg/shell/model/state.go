package model

import "fmt"

// State represents the current state of a pipeline run.
type State int

const (
	// StateIdle indicates no pipeline is in flight.
	StateIdle State = iota
	// StateRunning indicates a pipeline is currently executing.
	StateRunning
	// StateCompleted indicates the last run finished successfully.
	StateCompleted
	// StateErrored indicates the last run was terminated by a stage error.
	StateErrored
	// StateKilled indicates the last run was killed.
	StateKilled
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateErrored:
		return "Errored"
	case StateKilled:
		return "Killed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}
