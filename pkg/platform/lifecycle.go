package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Closer is any resource with a Close method, as accepted by
// closeResource.
type Closer interface {
	Close() error
}

// Hook pairs a component's startup with its shutdown. Either side may be
// nil for components that only need one.
type Hook struct {
	OnStart func(context.Context) error
	OnStop  func(context.Context) error
}

// Lifecycle runs hooks in registration order on startup and in reverse
// order on shutdown. A hook's stop side only ever runs after its start
// side succeeded.
type Lifecycle struct {
	mu      sync.Mutex
	hooks   []Hook
	started bool
	log     *slog.Logger
}

// NewLifecycle creates an empty lifecycle.
func NewLifecycle(log *slog.Logger) *Lifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &Lifecycle{log: log}
}

// Append registers a hook. Hooks registered after Start do not run until
// the next Start.
func (l *Lifecycle) Append(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

// Start runs the start side of every hook. When one fails, the hooks that
// already started are stopped in reverse order and the failure is
// returned.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return fmt.Errorf("lifecycle already started")
	}

	for i, h := range l.hooks {
		if h.OnStart == nil {
			continue
		}
		if err := h.OnStart(ctx); err != nil {
			l.rollback(ctx, i)
			return fmt.Errorf("start hook %d failed: %w", i, err)
		}
	}

	l.started = true
	return nil
}

// rollback stops the hooks before failedAt in reverse order.
func (l *Lifecycle) rollback(ctx context.Context, failedAt int) {
	for i := failedAt - 1; i >= 0; i-- {
		if l.hooks[i].OnStop == nil {
			continue
		}
		if err := l.hooks[i].OnStop(ctx); err != nil {
			l.log.Warn("lifecycle rollback: stop hook failed",
				"hook", i, "error", err)
		}
	}
}

// Stop runs the stop side of every hook in reverse order, collecting
// failures. Stopping a lifecycle that never started is a no-op.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil
	}

	var errs []error
	for i := len(l.hooks) - 1; i >= 0; i-- {
		if l.hooks[i].OnStop == nil {
			continue
		}
		if err := l.hooks[i].OnStop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop hook %d: %w", i, err))
		}
	}

	l.started = false
	return errors.Join(errs...)
}
