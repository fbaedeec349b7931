package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/arnav-platform/pkg/nav"
)

const (
	regTestLimit      = 200
	regTestSess1      = "sess-1"
	regTestUserID     = int64(42)
	regTestGoroutines = 8
	regTestIterations = 50
)

var regTestDevice = nav.DeviceInfo{Model: "pixel-9", BatteryLevel: 85}

func newTestRegistry() *MemoryRegistry {
	return NewMemoryRegistry(regTestLimit)
}

func TestMemoryRegistry_CreateAndGet(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	created, err := r.Create(ctx, regTestSess1, regTestUserID, regTestDevice)
	require.NoError(t, err)
	assert.Equal(t, regTestSess1, created.ID)
	assert.Equal(t, nav.PowerModeNormal, created.PowerMode)

	got, err := r.Get(ctx, regTestSess1)
	require.NoError(t, err)
	assert.Equal(t, regTestUserID, got.UserID)
	assert.Equal(t, regTestDevice, got.Device)
	assert.Nil(t, got.CurrentPath)
	assert.Equal(t, 1, r.Count())
}

func TestMemoryRegistry_CreateValidation(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	_, err := r.Create(ctx, "", regTestUserID, regTestDevice)
	require.ErrorIs(t, err, nav.ErrInvalidArgument)

	_, err = r.Create(ctx, "   ", regTestUserID, regTestDevice)
	require.ErrorIs(t, err, nav.ErrInvalidArgument)

	_, err = r.Create(ctx, regTestSess1, 0, regTestDevice)
	require.ErrorIs(t, err, nav.ErrInvalidArgument)

	_, err = r.Create(ctx, regTestSess1, -5, regTestDevice)
	require.ErrorIs(t, err, nav.ErrInvalidArgument)

	assert.Equal(t, 0, r.Count(), "failed creates must not admit sessions")
}

func TestMemoryRegistry_Conflict(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	first, err := r.Create(ctx, regTestSess1, regTestUserID, regTestDevice)
	require.NoError(t, err)

	_, err = r.Create(ctx, regTestSess1, 99, nav.DeviceInfo{Model: "other"})
	require.ErrorIs(t, err, nav.ErrSessionConflict)

	// First session's state is unaffected by the conflicting create.
	got, err := r.Get(ctx, regTestSess1)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, got.UserID)
	assert.Equal(t, regTestDevice, got.Device)
	assert.Equal(t, 1, r.Count())
}

func TestMemoryRegistry_AdmissionBound(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	for i := 0; i < regTestLimit; i++ {
		_, err := r.Create(ctx, fmt.Sprintf("sess-%d", i), regTestUserID, regTestDevice)
		require.NoError(t, err, "session %d of %d must be admitted", i+1, regTestLimit)
	}
	require.Equal(t, regTestLimit, r.Count())

	_, err := r.Create(ctx, "one-too-many", regTestUserID, regTestDevice)
	require.ErrorIs(t, err, nav.ErrSessionLimitExceeded)
	assert.Equal(t, regTestLimit, r.Count())

	// Closing one frees a slot.
	require.True(t, r.Close(ctx, "sess-0"))
	_, err = r.Create(ctx, "one-too-many", regTestUserID, regTestDevice)
	require.NoError(t, err)
}

func TestMemoryRegistry_ConcurrentCreateRespectsLimit(t *testing.T) {
	const limit = 200
	const attempts = 350

	r := NewMemoryRegistry(limit)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := make(map[string]bool)
	var limitErrs int

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("concurrent-%d", i)
			_, err := r.Create(ctx, id, regTestUserID, regTestDevice)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				require.False(t, succeeded[id], "duplicate admission for %s", id)
				succeeded[id] = true
			} else {
				require.ErrorIs(t, err, nav.ErrSessionLimitExceeded)
				limitErrs++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, limit, len(succeeded))
	assert.Equal(t, attempts-limit, limitErrs)
	assert.Equal(t, limit, r.Count())
	assert.Len(t, r.ListIDs(), limit)
}

func TestMemoryRegistry_UpdatePath(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	_, err := r.Create(ctx, regTestSess1, regTestUserID, regTestDevice)
	require.NoError(t, err)

	before, err := r.Get(ctx, regTestSess1)
	require.NoError(t, err)

	path := &nav.NavigationPath{
		ID:      "path-1",
		Points:  []nav.PathPoint{{X: 0, Y: 0}, {X: 10, Y: 0}},
		Version: 1,
	}
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, r.UpdatePath(ctx, regTestSess1, path))

	got, err := r.Get(ctx, regTestSess1)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPath)
	assert.Equal(t, "path-1", got.CurrentPath.ID)
	assert.True(t, got.LastActiveAt.After(before.LastActiveAt), "UpdatePath must bump LastActiveAt")

	// Mutating the caller's path after commit must not leak into the registry.
	path.Points[0].X = 999
	got2, err := r.Get(ctx, regTestSess1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got2.CurrentPath.Points[0].X)

	err = r.UpdatePath(ctx, "missing", path)
	require.ErrorIs(t, err, nav.ErrSessionNotFound)
}

func TestMemoryRegistry_ConcurrentUpdatesSameSession(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	_, err := r.Create(ctx, regTestSess1, regTestUserID, regTestDevice)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(regTestGoroutines)
	for g := 0; g < regTestGoroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < regTestIterations; i++ {
				path := &nav.NavigationPath{
					ID:      fmt.Sprintf("path-%d-%d", g, i),
					Points:  []nav.PathPoint{{}, {X: float64(i)}},
					Version: i,
				}
				_ = r.UpdatePath(ctx, regTestSess1, path)
				_, _ = r.Get(ctx, regTestSess1)
			}
		}(g)
	}
	wg.Wait()

	got, err := r.Get(ctx, regTestSess1)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPath, "last write must be fully visible, never torn")
	assert.Len(t, got.CurrentPath.Points, 2)
}

func TestMemoryRegistry_SetPowerMode(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	_, err := r.Create(ctx, regTestSess1, regTestUserID, regTestDevice)
	require.NoError(t, err)

	settings := map[string]any{"frame_rate": 10}
	require.NoError(t, r.SetPowerMode(ctx, regTestSess1, nav.PowerModeSaving, settings))

	got, err := r.Get(ctx, regTestSess1)
	require.NoError(t, err)
	assert.Equal(t, nav.PowerModeSaving, got.PowerMode)
	assert.Equal(t, 10, got.Settings["frame_rate"])

	err = r.SetPowerMode(ctx, regTestSess1, nav.PowerMode("turbo"), nil)
	require.ErrorIs(t, err, nav.ErrInvalidArgument)

	err = r.SetPowerMode(ctx, "missing", nav.PowerModeNormal, nil)
	require.ErrorIs(t, err, nav.ErrSessionNotFound)
}

func TestMemoryRegistry_CloseIdempotent(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	_, err := r.Create(ctx, regTestSess1, regTestUserID, regTestDevice)
	require.NoError(t, err)

	assert.True(t, r.Close(ctx, regTestSess1))
	assert.Equal(t, 0, r.Count())

	// Second close and closing an unknown id are failures, not errors.
	assert.False(t, r.Close(ctx, regTestSess1))
	assert.False(t, r.Close(ctx, "never-existed"))
	assert.Equal(t, 0, r.Count())
}

func TestMemoryRegistry_CleanupExpired(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	_, err := r.Create(ctx, "stale", regTestUserID, regTestDevice)
	require.NoError(t, err)
	_, err = r.Create(ctx, "fresh", regTestUserID, regTestDevice)
	require.NoError(t, err)

	// Backdate the stale session past the threshold.
	r.mu.Lock()
	r.sessions["stale"].sess.LastActiveAt = time.Now().Add(-31 * time.Minute)
	r.mu.Unlock()

	removed := r.CleanupExpired(ctx, 30*time.Minute)
	assert.Equal(t, []string{"stale"}, removed)

	_, err = r.Get(ctx, "stale")
	require.ErrorIs(t, err, nav.ErrSessionNotFound)
	_, err = r.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count())
}

func TestMemoryRegistry_CleanupConcurrentWithCreates(t *testing.T) {
	r := NewMemoryRegistry(1000)
	ctx := context.Background()

	// Seed a batch of long-idle sessions so every sweep has real work.
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("stale-%d", i)
		_, err := r.Create(ctx, id, regTestUserID, regTestDevice)
		require.NoError(t, err)
	}
	r.mu.Lock()
	for _, e := range r.sessions {
		e.sess.LastActiveAt = time.Now().Add(-time.Hour)
	}
	r.mu.Unlock()

	// Creates and gets interleave with sweeps. The sweep must not hold the
	// registry lock across its scan, and every fresh session must survive.
	var wg sync.WaitGroup
	for g := 0; g < regTestGoroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < regTestIterations; i++ {
				id := fmt.Sprintf("fresh-%d-%d", g, i)
				_, err := r.Create(ctx, id, regTestUserID, regTestDevice)
				assert.NoError(t, err)
				_, err = r.Get(ctx, id)
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < regTestIterations; i++ {
			r.CleanupExpired(ctx, 30*time.Minute)
		}
	}()
	wg.Wait()

	assert.Equal(t, regTestGoroutines*regTestIterations, r.Count())
	removed := r.CleanupExpired(ctx, 30*time.Minute)
	assert.Empty(t, removed)
}

func TestMemoryRegistry_CleanupRoutine(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	_, err := r.Create(ctx, "stale", regTestUserID, regTestDevice)
	require.NoError(t, err)
	r.mu.Lock()
	r.sessions["stale"].sess.LastActiveAt = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	removedCh := make(chan []string, 1)
	r.StartCleanupRoutine(20*time.Millisecond, 30*time.Minute, func(ids []string) {
		select {
		case removedCh <- ids:
		default:
		}
	})
	defer r.Shutdown()

	select {
	case ids := <-removedCh:
		assert.Equal(t, []string{"stale"}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup routine did not remove the stale session")
	}
	assert.Equal(t, 0, r.Count())
}

func TestMemoryRegistry_ShutdownWithoutRoutine(t *testing.T) {
	r := newTestRegistry()
	r.Shutdown() // must not panic
}

func TestMemoryRegistry_ListIDsSnapshot(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.Create(ctx, fmt.Sprintf("sess-%d", i), regTestUserID, regTestDevice)
		require.NoError(t, err)
	}

	ids := r.ListIDs()
	require.Len(t, ids, 3)

	// Mutating the snapshot has no effect on the registry.
	ids[0] = "tampered"
	assert.Equal(t, 3, r.Count())
	_, err := r.Get(ctx, "sess-0")
	require.NoError(t, err)
}
