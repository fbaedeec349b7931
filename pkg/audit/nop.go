package audit

import "context"

// NopLogger discards all audit events. Used when auditing is disabled.
type NopLogger struct{}

// NewNopLogger creates a logger that discards events.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

// Log discards the event.
func (*NopLogger) Log(_ context.Context, _ Event) error { return nil }

// Query returns no events.
func (*NopLogger) Query(_ context.Context, _ QueryFilter) ([]Event, error) { return nil, nil }

// Close does nothing.
func (*NopLogger) Close() error { return nil }

// Verify interface compliance.
var _ Logger = (*NopLogger)(nil)
