// Package program provides the loadable artifacts the shell can execute.
// Every program is a pure byte transform: it reads from stdin, writes to
// stdout and returns once its input is exhausted or its context is cancelled.
package program

import (
	"context"
	"io"

	"github.com/askiada/wapm-shell/pkg/shell/model"
)

// Func adapts a plain function to the model.Artifact interface.
type Func func(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error

// Run implements model.Artifact.
func (f Func) Run(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string, env map[string]string) error {
	return f(ctx, stdin, stdout, args, env)
}

var _ model.Artifact = (Func)(nil)
