package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/txn2/arnav-platform/pkg/nav"
)

// DefaultMaxActive is the default admission limit.
const DefaultMaxActive = 200

// DefaultIdleThreshold is the default idle expiry threshold.
const DefaultIdleThreshold = 30 * time.Minute

// entry pairs a session with its own mutex. Per-entry locking serializes
// mutations of one session without blocking operations on other sessions.
type entry struct {
	mu   sync.Mutex
	sess *Session
}

// MemoryRegistry implements Registry with an in-memory map, an atomic active
// counter, and per-session serialization.
//
// Lock order: registry lock before entry lock. Mutations of an existing
// entry hold the registry read lock for the duration so removal (which takes
// the write lock) cannot race a mid-flight update.
type MemoryRegistry struct {
	maxActive int

	mu       sync.RWMutex
	sessions map[string]*entry
	active   atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryRegistry creates a registry with the given admission limit.
// A non-positive limit falls back to DefaultMaxActive.
func NewMemoryRegistry(maxActive int) *MemoryRegistry {
	if maxActive <= 0 {
		maxActive = DefaultMaxActive
	}
	return &MemoryRegistry{
		maxActive: maxActive,
		sessions:  make(map[string]*entry),
	}
}

// Create admits a new session. The limit check and insert happen under the
// write lock so no two concurrent creates can both succeed past the limit.
func (r *MemoryRegistry) Create(_ context.Context, id string, userID int64, device nav.DeviceInfo) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("session id must not be empty: %w", nav.ErrInvalidArgument)
	}
	if userID <= 0 {
		return nil, fmt.Errorf("user id %d: %w", userID, nav.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.maxActive {
		return nil, fmt.Errorf("active sessions at limit %d: %w", r.maxActive, nav.ErrSessionLimitExceeded)
	}
	if _, exists := r.sessions[id]; exists {
		return nil, fmt.Errorf("session %q: %w", id, nav.ErrSessionConflict)
	}

	now := time.Now()
	sess := &Session{
		ID:           id,
		UserID:       userID,
		Device:       device,
		PowerMode:    nav.PowerModeNormal,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	r.sessions[id] = &entry{sess: sess}
	r.active.Store(int64(len(r.sessions)))

	return sess.clone(), nil
}

// Get returns a snapshot of the session.
func (r *MemoryRegistry) Get(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, nav.ErrSessionNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.clone(), nil
}

// UpdatePath replaces the session's current path and bumps LastActiveAt.
func (r *MemoryRegistry) UpdatePath(_ context.Context, id string, path *nav.NavigationPath) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %q: %w", id, nav.ErrSessionNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.CurrentPath = path.Clone()
	e.sess.LastActiveAt = time.Now()
	return nil
}

// SetPowerMode records the power mode and its settings.
func (r *MemoryRegistry) SetPowerMode(_ context.Context, id string, mode nav.PowerMode, settings map[string]any) error {
	if !mode.Valid() {
		return fmt.Errorf("power mode %q: %w", mode, nav.ErrInvalidArgument)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %q: %w", id, nav.ErrSessionNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.PowerMode = mode
	e.sess.Settings = settings
	e.sess.LastActiveAt = time.Now()
	return nil
}

// Close removes the session, returning false when it did not exist.
func (r *MemoryRegistry) Close(_ context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	r.active.Store(int64(len(r.sessions)))
	return true
}

// CleanupExpired removes sessions idle longer than the threshold. The
// registry lock is held only to snapshot the map and to remove single
// entries; idleness checks run under per-entry locks alone, so concurrent
// creates and gets never wait out a full scan.
func (r *MemoryRegistry) CleanupExpired(_ context.Context, idleThreshold time.Duration) []string {
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	cutoff := time.Now().Add(-idleThreshold)

	type candidate struct {
		id string
		e  *entry
	}

	r.mu.RLock()
	snapshot := make([]candidate, 0, len(r.sessions))
	for id, e := range r.sessions {
		snapshot = append(snapshot, candidate{id: id, e: e})
	}
	r.mu.RUnlock()

	removed := make([]string, 0)
	for _, c := range snapshot {
		c.e.mu.Lock()
		idle := c.e.sess.LastActiveAt.Before(cutoff)
		c.e.mu.Unlock()
		if !idle {
			continue
		}

		r.mu.Lock()
		e, ok := r.sessions[c.id]
		if ok && e == c.e {
			e.mu.Lock()
			stillIdle := e.sess.LastActiveAt.Before(cutoff)
			e.mu.Unlock()
			if stillIdle {
				delete(r.sessions, c.id)
				r.active.Store(int64(len(r.sessions)))
				removed = append(removed, c.id)
			}
		}
		r.mu.Unlock()
	}
	return removed
}

// Count returns the active session count without taking the map lock.
func (r *MemoryRegistry) Count() int {
	return int(r.active.Load())
}

// ListIDs returns a snapshot of active session ids.
func (r *MemoryRegistry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// StartCleanupRoutine starts a background goroutine that periodically removes
// idle sessions, invoking onRemoved with the removed ids after each sweep.
// The goroutine is stopped when Close is called.
func (r *MemoryRegistry) StartCleanupRoutine(interval, idleThreshold time.Duration, onRemoved func([]string)) {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := r.CleanupExpired(ctx, idleThreshold)
				if len(removed) > 0 && onRemoved != nil {
					onRemoved(removed)
				}
			}
		}
	}()
}

// Shutdown stops the cleanup goroutine and waits for it to exit. It is safe
// to call even if StartCleanupRoutine was never called.
func (r *MemoryRegistry) Shutdown() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

// Verify interface compliance.
var _ Registry = (*MemoryRegistry)(nil)
