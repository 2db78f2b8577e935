// Package resolver maps command names to loadable artifacts. The cache is an
// explicitly owned object with an injected eviction policy rather than
// process-wide state.
package resolver

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/wapm-shell/internal/store"
	"github.com/askiada/wapm-shell/pkg/shell/model"
)

// ErrNotFound is returned when a command name has no matching artifact.
var ErrNotFound = errors.New("command not found")

// Resolver maps a command name to a loadable artifact.
type Resolver interface {
	Resolve(ctx context.Context, name string) (model.Artifact, error)
}

// Registry resolves names against a fixed program table.
type Registry struct {
	programs map[string]model.Artifact
}

// NewRegistry creates a Registry over the given program table.
func NewRegistry(programs map[string]model.Artifact) *Registry {
	return &Registry{programs: programs}
}

// Resolve implements Resolver.
func (r *Registry) Resolve(_ context.Context, name string) (model.Artifact, error) {
	artifact, ok := r.programs[name]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}

	return artifact, nil
}

// Option configures a Caching resolver.
type Option func(*Caching)

// MaxEntries bounds the cache to n artifacts, evicting oldest-first. Without
// it the cache grows unbounded for the session.
func MaxEntries(n int) Option {
	return func(c *Caching) {
		c.capacity = n
	}
}

// Caching decorates a Resolver with an artifact cache. Successful resolutions
// are cached; failures are not.
type Caching struct {
	inner    Resolver
	cache    store.Store[string, model.Artifact]
	capacity int
}

// NewCaching creates a caching resolver around inner.
func NewCaching(inner Resolver, opts ...Option) *Caching {
	c := &Caching{inner: inner}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = store.NewMemoryStore[string, model.Artifact](c.capacity)

	return c
}

// Resolve implements Resolver.
func (c *Caching) Resolve(ctx context.Context, name string) (model.Artifact, error) {
	if artifact, ok := c.cache.Get(name); ok {
		return artifact, nil
	}

	artifact, err := c.inner.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Put(name, artifact)

	return artifact, nil
}
