// Package latency tracks per-session processing latency against the
// real-time budget.
package latency

import (
	"fmt"
	"sync"
	"time"

	"github.com/txn2/arnav-platform/pkg/nav"
)

// Threshold is the processing-latency budget. A session meets the
// requirement strictly below this value; exactly 800ms fails.
const Threshold = 800 * time.Millisecond

// DefaultWindow is the number of samples the rolling figure averages over.
const DefaultWindow = 16

// ring is a fixed-size sample buffer for one session.
type ring struct {
	samples []time.Duration
	next    int
	filled  int
}

func (r *ring) record(d time.Duration) {
	r.samples[r.next] = d
	r.next = (r.next + 1) % len(r.samples)
	if r.filled < len(r.samples) {
		r.filled++
	}
}

func (r *ring) mean() time.Duration {
	if r.filled == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < r.filled; i++ {
		sum += r.samples[i]
	}
	return sum / time.Duration(r.filled)
}

// Monitor holds rolling latency samples per session. Sample recording is
// scoped to one session; a single lock guards only the session index.
type Monitor struct {
	mu        sync.RWMutex
	threshold time.Duration
	window    int
	rings     map[string]*ring
}

// NewMonitor creates a monitor with the given rolling window size.
// A non-positive window falls back to DefaultWindow.
func NewMonitor(window int) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Monitor{
		threshold: Threshold,
		window:    window,
		rings:     make(map[string]*ring),
	}
}

// Record adds a sample for the session, creating its buffer on first use.
func (m *Monitor) Record(sessionID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rings[sessionID]
	if !ok {
		r = &ring{samples: make([]time.Duration, m.window)}
		m.rings[sessionID] = r
	}
	r.record(d)
}

// Current returns the session's rolling mean latency. Sessions with no
// recorded samples report zero; unknown sessions are an error.
func (m *Monitor) Current(sessionID string) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rings[sessionID]
	if !ok {
		return 0, fmt.Errorf("no latency samples for session %q: %w", sessionID, nav.ErrSessionNotFound)
	}
	return r.mean(), nil
}

// MeetsRequirement reports whether the latency is strictly below the
// threshold. The documented contract is "below 0.8s": the boundary fails.
func (m *Monitor) MeetsRequirement(d time.Duration) bool {
	return d < m.threshold
}

// Remove drops the session's sample buffer.
func (m *Monitor) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rings, sessionID)
}

// Init preallocates an empty buffer for a new session so Current succeeds
// before the first sample arrives.
func (m *Monitor) Init(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rings[sessionID]; !ok {
		m.rings[sessionID] = &ring{samples: make([]time.Duration, m.window)}
	}
}
