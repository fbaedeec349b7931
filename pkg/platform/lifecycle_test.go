package platform

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLifecycle() *Lifecycle {
	return NewLifecycle(slog.New(slog.DiscardHandler))
}

func TestLifecycle_StartStopOrder(t *testing.T) {
	l := newTestLifecycle()
	var order []string

	l.Append(Hook{
		OnStart: func(context.Context) error { order = append(order, "start-a"); return nil },
		OnStop:  func(context.Context) error { order = append(order, "stop-a"); return nil },
	})
	l.Append(Hook{
		OnStart: func(context.Context) error { order = append(order, "start-b"); return nil },
		OnStop:  func(context.Context) error { order = append(order, "stop-b"); return nil },
	})

	ctx := context.Background()
	require.NoError(t, l.Start(ctx))
	require.NoError(t, l.Stop(ctx))

	// Stops run in reverse registration order.
	assert.Equal(t, []string{"start-a", "start-b", "stop-b", "stop-a"}, order)
}

func TestLifecycle_DoubleStartFails(t *testing.T) {
	l := newTestLifecycle()
	ctx := context.Background()

	require.NoError(t, l.Start(ctx))
	assert.Error(t, l.Start(ctx))
}

func TestLifecycle_StartFailureRollsBack(t *testing.T) {
	l := newTestLifecycle()
	var stopped []string

	l.Append(Hook{
		OnStart: func(context.Context) error { return nil },
		OnStop:  func(context.Context) error { stopped = append(stopped, "first"); return nil },
	})
	l.Append(Hook{
		OnStart: func(context.Context) error { return errors.New("boom") },
		OnStop:  func(context.Context) error { stopped = append(stopped, "second"); return nil },
	})

	err := l.Start(context.Background())
	require.Error(t, err)

	// Only the hook that started gets rolled back; Stop after a failed
	// Start is a no-op.
	assert.Equal(t, []string{"first"}, stopped)
	require.NoError(t, l.Stop(context.Background()))
	assert.Equal(t, []string{"first"}, stopped)
}

func TestLifecycle_StopBeforeStartIsNoop(t *testing.T) {
	l := newTestLifecycle()
	var stopped bool
	l.Append(Hook{
		OnStop: func(context.Context) error { stopped = true; return nil },
	})

	require.NoError(t, l.Stop(context.Background()))
	assert.False(t, stopped)
}

func TestLifecycle_StopCollectsFailures(t *testing.T) {
	l := newTestLifecycle()
	l.Append(Hook{
		OnStop: func(context.Context) error { return errors.New("stop-a failed") },
	})
	l.Append(Hook{
		OnStart: func(context.Context) error { return nil },
		OnStop:  func(context.Context) error { return errors.New("stop-b failed") },
	})

	ctx := context.Background()
	require.NoError(t, l.Start(ctx))

	err := l.Stop(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop-a failed")
	assert.Contains(t, err.Error(), "stop-b failed")
}
