package scheduler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Handle is a running poll loop. Stop cancels it and waits for the current
// tick to return, so no callback fires after Stop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start runs s in its own goroutine under a child of ctx.
func Start(ctx context.Context, s *Scheduler, tick TickFunc) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		_ = s.Run(ctx, tick)
	}()
	return h
}

// Stop cancels the loop and blocks until it has exited.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Registry owns one handle per key.
type Registry struct {
	logger zerolog.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger:  logger.With().Str("component", "scheduler_registry").Logger(),
		handles: make(map[string]*Handle),
	}
}

// Start launches a loop under key, stopping any loop already registered there.
func (r *Registry) Start(ctx context.Context, key string, s *Scheduler, tick TickFunc) *Handle {
	r.mu.Lock()
	prev := r.handles[key]
	delete(r.handles, key)
	r.mu.Unlock()
	if prev != nil {
		prev.Stop()
		r.logger.Debug().Str("key", key).Msg("replaced running loop")
	}

	h := Start(ctx, s, tick)
	r.mu.Lock()
	r.handles[key] = h
	r.mu.Unlock()
	return h
}

// Stop cancels the loop under key. It reports whether one was running.
func (r *Registry) Stop(key string) bool {
	r.mu.Lock()
	h := r.handles[key]
	delete(r.handles, key)
	r.mu.Unlock()
	if h == nil {
		return false
	}
	h.Stop()
	return true
}

// StopAll cancels every loop.
func (r *Registry) StopAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()
	for _, h := range handles {
		h.Stop()
	}
}

// Len returns the number of registered loops.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
