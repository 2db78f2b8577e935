package model

import (
	"context"
	"io"
)

// Artifact is a loadable program ready to execute. It reads its input from
// stdin, writes its output to stdout and returns once the input is exhausted
// or the context is cancelled.
type Artifact interface {
	Run(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error
}

// ExecutionSpec describes one stage of a pipeline. It is built once per stage
// and never mutated afterwards.
type ExecutionSpec struct {
	// Args is the argument sequence. Args[0] is the command name.
	Args []string
	// Env holds the environment bindings for the stage. Keys are unique.
	Env map[string]string
	// Artifact is the resolved program for Args[0].
	Artifact Artifact
}

// Name returns the primary command of the spec.
func (s ExecutionSpec) Name() string {
	if len(s.Args) == 0 {
		return ""
	}

	return s.Args[0]
}
