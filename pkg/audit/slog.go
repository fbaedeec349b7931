package audit

import (
	"context"
	"log/slog"
)

// SlogLogger implements Logger by emitting structured log records. It backs
// deployments without a database; Query is unsupported.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger writing through the given slog handler.
// A nil logger uses slog.Default.
func NewSlogLogger(log *slog.Logger) *SlogLogger {
	if log == nil {
		log = slog.Default()
	}
	return &SlogLogger{log: log}
}

// Log records an audit event as a structured log line.
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	l.log.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("event_id", event.ID),
		slog.String("operation", event.Operation),
		slog.String("request_id", event.RequestID),
		slog.String("session_id", event.SessionID),
		slog.String("user_id", event.UserID),
		slog.Int64("duration_ms", event.DurationMS),
		slog.Bool("success", event.Success),
		slog.String("error", event.ErrorMessage),
	)
	return nil
}

// Query is not supported by the slog backend.
func (*SlogLogger) Query(_ context.Context, _ QueryFilter) ([]Event, error) {
	return nil, nil
}

// Close does nothing.
func (*SlogLogger) Close() error {
	return nil
}

// Verify interface compliance.
var _ Logger = (*SlogLogger)(nil)
