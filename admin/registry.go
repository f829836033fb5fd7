package admin

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/folio/content"
)

// Registry keeps one controller per browser session for a collection.
type Registry[R content.Record] struct {
	ctx     context.Context
	factory func(sessionID string) *Controller[R]

	mu          sync.Mutex
	controllers map[string]*entry[R]
}

type entry[R content.Record] struct {
	c    *Controller[R]
	open sync.Once
}

// NewRegistry returns a registry that builds controllers with factory and
// opens them with ctx.
func NewRegistry[R content.Record](ctx context.Context, factory func(sessionID string) *Controller[R]) *Registry[R] {
	return &Registry[R]{
		ctx:         ctx,
		factory:     factory,
		controllers: make(map[string]*entry[R]),
	}
}

// Get returns the session's controller, creating and opening it on first
// use. Concurrent callers wait until the controller is open.
func (r *Registry[R]) Get(sessionID string) *Controller[R] {
	r.mu.Lock()
	e, ok := r.controllers[sessionID]
	if !ok {
		e = &entry[R]{c: r.factory(sessionID)}
		r.controllers[sessionID] = e
	}
	r.mu.Unlock()
	e.open.Do(func() { e.c.Open(r.ctx) })
	return e.c
}

// Drop closes and forgets the session's controller.
func (r *Registry[R]) Drop(sessionID string) {
	r.mu.Lock()
	e, ok := r.controllers[sessionID]
	delete(r.controllers, sessionID)
	r.mu.Unlock()
	if ok {
		e.c.Close()
	}
}

// Evict closes controllers that have been idle longer than idle and have
// no live listeners. It returns how many were closed.
func (r *Registry[R]) Evict(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	var stale []*Controller[R]
	r.mu.Lock()
	for id, e := range r.controllers {
		if c := e.c; c.LastUsed().Before(cutoff) && !c.Listening() {
			stale = append(stale, c)
			delete(r.controllers, id)
		}
	}
	r.mu.Unlock()
	for _, c := range stale {
		c.Close()
	}
	return len(stale)
}

// Len returns the number of live controllers.
func (r *Registry[R]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// Close closes every controller.
func (r *Registry[R]) Close() {
	r.mu.Lock()
	all := r.controllers
	r.controllers = make(map[string]*entry[R])
	r.mu.Unlock()
	for _, e := range all {
		e.c.Close()
	}
}
