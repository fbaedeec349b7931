package nav

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathDistance(t *testing.T) {
	tests := []struct {
		name   string
		points []PathPoint
		want   float64
	}{
		{"empty", nil, 0},
		{"single point", []PathPoint{{X: 3, Y: 4}}, 0},
		{"straight segment", []PathPoint{{}, {X: 3, Y: 4}}, 5},
		{"two segments", []PathPoint{{}, {X: 3, Y: 4}, {X: 3, Y: 10}}, 11},
		{"vertical", []PathPoint{{}, {Z: 2}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PathDistance(tt.points), 1e-9)
		})
	}
}

func TestTravelTime(t *testing.T) {
	assert.Equal(t, 10, TravelTime(10, 1, 1))
	assert.Equal(t, 7, TravelTime(10, 1.5, 1), "ceil(6.67)")
	assert.Equal(t, UnreachableTime, TravelTime(10, 0, 1))
	assert.Equal(t, UnreachableTime, TravelTime(10, 1.2, 0))
	assert.Equal(t, UnreachableTime, TravelTime(10, 1.2, -1))
}

func TestMergeObstacleInfo(t *testing.T) {
	regionA := ObstacleRegion{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2, Kind: "crate"}
	regionB := ObstacleRegion{MinX: 5, MinY: 5, MaxX: 6, MaxY: 6}

	merged := MergeObstacleInfo("", []ObstacleRegion{regionA})
	assert.Equal(t, regionA.Label(), merged)

	// Existing text is preserved and new regions appended.
	merged = MergeObstacleInfo(merged, []ObstacleRegion{regionB})
	assert.Contains(t, merged, regionA.Label())
	assert.Contains(t, merged, regionB.Label())

	// Re-reporting the same region does not duplicate it.
	again := MergeObstacleInfo(merged, []ObstacleRegion{regionA, regionB})
	assert.Equal(t, merged, again)
}

func TestNavigationPathDestination(t *testing.T) {
	var nilPath *NavigationPath
	_, ok := nilPath.Destination()
	assert.False(t, ok)

	p := &NavigationPath{Points: []PathPoint{{X: 1}, {X: 9, Y: 2}}}
	dest, ok := p.Destination()
	require.True(t, ok)
	assert.Equal(t, PathPoint{X: 9, Y: 2}, dest)
}

func TestNavigationPathClone(t *testing.T) {
	p := &NavigationPath{ID: "p1", Points: []PathPoint{{X: 1}, {X: 2}}, Version: 3}
	cp := p.Clone()
	require.NotNil(t, cp)

	cp.Points[0].X = 99
	cp.Version = 4
	assert.Equal(t, 1.0, p.Points[0].X, "clone must not alias point storage")
	assert.Equal(t, 3, p.Version)
}

func TestObstacleRegionContains(t *testing.T) {
	r := ObstacleRegion{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10, MaxZ: 3}
	assert.True(t, r.Contains(PathPoint{X: 5, Y: 5}))
	assert.True(t, r.Contains(PathPoint{X: 10, Y: 10, Z: 3}), "boundary is inclusive")
	assert.False(t, r.Contains(PathPoint{X: 11, Y: 5}))
	assert.False(t, r.Contains(PathPoint{X: 5, Y: 5, Z: 4}))
}

func TestIsRoutine(t *testing.T) {
	routine := []error{
		ErrInvalidArgument,
		ErrSessionLimitExceeded,
		ErrSessionConflict,
		fmt.Errorf("lookup: %w", ErrSessionNotFound),
	}
	for _, err := range routine {
		assert.True(t, IsRoutine(err), err.Error())
	}

	assert.False(t, IsRoutine(ErrVideoProcessing))
	assert.False(t, IsRoutine(errors.New("disk on fire")))
}

func TestUnreachable(t *testing.T) {
	p := &NavigationPath{EstimatedTime: UnreachableTime}
	assert.True(t, p.Unreachable())
	assert.False(t, (&NavigationPath{EstimatedTime: 12}).Unreachable())
}
