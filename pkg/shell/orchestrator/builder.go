package orchestrator

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/wapm-shell/pkg/shell/model"
	"github.com/askiada/wapm-shell/pkg/shell/resolver"
)

// ErrCommandMustBeSet is returned when Build is called without a command.
var ErrCommandMustBeSet = errors.New("command must be set")

// Builder walks a parsed command tree and produces the ordered sequence of
// execution specs, first stage first.
type Builder struct {
	resolver resolver.Resolver
}

// NewBuilder creates a Builder resolving command names through res.
func NewBuilder(res resolver.Resolver) *Builder {
	return &Builder{resolver: res}
}

// Build walks the pipe chain and returns one spec per stage, ordered
// left-to-right as written. Resolution failures abort the build, so they
// report on the same boundary as parse failures and nothing spawns.
func (b *Builder) Build(ctx context.Context, cmd *model.Command) ([]model.ExecutionSpec, error) {
	if cmd == nil {
		return nil, ErrCommandMustBeSet
	}

	var specs []model.ExecutionSpec
	for c := cmd; c != nil; c = c.Pipe {
		artifact, err := b.resolver.Resolve(ctx, c.Name)
		if err != nil {
			return nil, err
		}

		env := c.Env
		if env == nil {
			env = map[string]string{}
		}
		specs = append(specs, model.ExecutionSpec{
			Args:     append([]string{c.Name}, c.Args...),
			Env:      env,
			Artifact: artifact,
		})
	}

	return specs, nil
}
