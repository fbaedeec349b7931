// Package monitoring wires per-session observability setup and teardown.
// Hook failures are best-effort by contract: session creation never rolls
// back because monitoring setup failed.
package monitoring

import (
	"context"

	"github.com/txn2/arnav-platform/pkg/latency"
)

// Hooks is the per-session observability contract.
type Hooks interface {
	// Initialize prepares monitoring for a new session id.
	Initialize(ctx context.Context, sessionID string) error

	// Cleanup releases monitoring for a removed session id.
	Cleanup(ctx context.Context, sessionID string) error
}

// NoopHooks is a no-op implementation for testing.
type NoopHooks struct{}

// NewNoopHooks creates new no-op hooks.
func NewNoopHooks() *NoopHooks {
	return &NoopHooks{}
}

// Initialize does nothing.
func (*NoopHooks) Initialize(_ context.Context, _ string) error { return nil }

// Cleanup does nothing.
func (*NoopHooks) Cleanup(_ context.Context, _ string) error { return nil }

// LatencyHooks binds session lifecycle to the latency monitor: sample
// buffers are preallocated on create and dropped on close or expiry.
type LatencyHooks struct {
	monitor *latency.Monitor
}

// NewLatencyHooks creates hooks backed by the given monitor.
func NewLatencyHooks(m *latency.Monitor) *LatencyHooks {
	return &LatencyHooks{monitor: m}
}

// Initialize preallocates the session's latency buffer.
func (h *LatencyHooks) Initialize(_ context.Context, sessionID string) error {
	h.monitor.Init(sessionID)
	return nil
}

// Cleanup drops the session's latency buffer.
func (h *LatencyHooks) Cleanup(_ context.Context, sessionID string) error {
	h.monitor.Remove(sessionID)
	return nil
}

// Verify interface compliance.
var (
	_ Hooks = (*NoopHooks)(nil)
	_ Hooks = (*LatencyHooks)(nil)
)
