package audit

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent("adjust_path")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "adjust_path", e.Operation)
	assert.False(t, e.Timestamp.IsZero())

	other := NewEvent("adjust_path")
	assert.NotEqual(t, e.ID, other.ID, "event ids must be unique")
}

func TestEventBuilders(t *testing.T) {
	e := NewEvent("create_session").
		WithSession("sess-1", "user-7").
		WithRequestID("req-1").
		WithParameters(map[string]any{"battery": 85}).
		WithResult(false, "limit exceeded", 12)

	assert.Equal(t, "sess-1", e.SessionID)
	assert.Equal(t, "user-7", e.UserID)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, 85, e.Parameters["battery"])
	assert.False(t, e.Success)
	assert.Equal(t, "limit exceeded", e.ErrorMessage)
	assert.Equal(t, int64(12), e.DurationMS)
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	e := NewEvent("close_session").WithSession("sess-9", "user-1").WithResult(true, "", 3)
	require.NoError(t, logger.Log(context.Background(), *e))

	out := buf.String()
	assert.Contains(t, out, `"operation":"close_session"`)
	assert.Contains(t, out, `"session_id":"sess-9"`)
	assert.Contains(t, out, `"success":true`)

	events, err := logger.Query(context.Background(), QueryFilter{})
	require.NoError(t, err)
	assert.Nil(t, events, "slog backend does not support queries")
	assert.NoError(t, logger.Close())
}

func TestSlogLoggerNilDefault(t *testing.T) {
	logger := NewSlogLogger(nil)
	require.NotNil(t, logger.log)
}
