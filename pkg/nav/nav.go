// Package nav defines the navigation domain model shared across the
// platform: paths, path points, environment changes, and device state.
package nav

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// UnreachableTime is the estimated-time sentinel for routes that cannot be
// completed (no feasible detour, or effective speed <= 0).
const UnreachableTime = math.MaxInt32

// PathStatus describes the lifecycle state of a persisted path.
type PathStatus string

const (
	// PathStatusActive is a path currently in use by a session.
	PathStatusActive PathStatus = "active"

	// PathStatusInactive is a superseded path kept for history.
	PathStatusInactive PathStatus = "inactive"

	// PathStatusExpired is a path whose session expired.
	PathStatusExpired PathStatus = "expired"
)

// PowerMode selects the quality/power tradeoff for a session.
type PowerMode string

const (
	// PowerModeNormal favors path fidelity over battery.
	PowerModeNormal PowerMode = "normal"

	// PowerModeSaving favors battery: fewer waypoints, coarser updates.
	PowerModeSaving PowerMode = "power_saving"
)

// Valid reports whether the mode is a known value.
func (m PowerMode) Valid() bool {
	return m == PowerModeNormal || m == PowerModeSaving
}

// PathPoint is a single waypoint on a navigation path.
type PathPoint struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	Description string  `json:"description,omitempty"`
}

// DistanceTo returns the Euclidean distance to another point.
func (p PathPoint) DistanceTo(q PathPoint) float64 {
	dx := q.X - p.X
	dy := q.Y - p.Y
	dz := q.Z - p.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// NavigationPath is an ordered waypoint sequence with derived estimates.
type NavigationPath struct {
	ID               string      `json:"id"`
	Points           []PathPoint `json:"points"`
	DistanceEstimate float64     `json:"distance_estimate"`
	EstimatedTime    int         `json:"estimated_time"`
	ObstacleInfo     string      `json:"obstacle_info,omitempty"`
	Status           PathStatus  `json:"status"`
	UserID           int64       `json:"user_id"`
	VenueID          int64       `json:"venue_id"`
	Version          int         `json:"version"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Destination returns the final waypoint. ok is false for an empty path.
func (p *NavigationPath) Destination() (PathPoint, bool) {
	if p == nil || len(p.Points) == 0 {
		return PathPoint{}, false
	}
	return p.Points[len(p.Points)-1], true
}

// Unreachable reports whether the path carries the unreachable sentinel.
func (p *NavigationPath) Unreachable() bool {
	return p != nil && p.EstimatedTime == UnreachableTime
}

// Clone returns a deep copy. Registry reads hand out clones so callers can
// never alias registry-owned state.
func (p *NavigationPath) Clone() *NavigationPath {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Points = make([]PathPoint, len(p.Points))
	copy(cp.Points, p.Points)
	return &cp
}

// ObstacleRegion is an axis-aligned box blocking navigable space.
type ObstacleRegion struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MinZ float64 `json:"min_z"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
	MaxZ float64 `json:"max_z"`
	Kind string  `json:"kind,omitempty"`
}

// Contains reports whether the point lies inside the region (inclusive).
func (r ObstacleRegion) Contains(p PathPoint) bool {
	return p.X >= r.MinX && p.X <= r.MaxX &&
		p.Y >= r.MinY && p.Y <= r.MaxY &&
		p.Z >= r.MinZ && p.Z <= r.MaxZ
}

// Label returns the region's display form used in merged obstacle info.
func (r ObstacleRegion) Label() string {
	kind := r.Kind
	if kind == "" {
		kind = "obstacle"
	}
	return fmt.Sprintf("%s[%.1f,%.1f,%.1f..%.1f,%.1f,%.1f]",
		kind, r.MinX, r.MinY, r.MinZ, r.MaxX, r.MaxY, r.MaxZ)
}

// EnvironmentChanges carries a frame-derived environment update: the user's
// current position, movement parameters, and newly observed obstacles.
type EnvironmentChanges struct {
	CurrentX              float64          `json:"current_x"`
	CurrentY              float64          `json:"current_y"`
	CurrentZ              float64          `json:"current_z"`
	NavigationSpeed       float64          `json:"navigation_speed"`
	SpeedAdjustmentFactor float64          `json:"speed_adjustment_factor"`
	NewObstacles          []ObstacleRegion `json:"new_obstacles,omitempty"`
}

// Position returns the reported current position as a path point.
func (e EnvironmentChanges) Position() PathPoint {
	return PathPoint{X: e.CurrentX, Y: e.CurrentY, Z: e.CurrentZ, Description: "current position"}
}

// DeviceInfo describes the client device for a session.
type DeviceInfo struct {
	Model        string `json:"model"`
	BatteryLevel int    `json:"battery_level"`
}

// PathDistance returns the sum of Euclidean distances between consecutive
// points. Paths with fewer than two points have zero distance.
func PathDistance(points []PathPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(points); i++ {
		total += points[i-1].DistanceTo(points[i])
	}
	return total
}

// TravelTime returns ceil(distance / (speed * factor)) in whole seconds, or
// UnreachableTime when the effective speed is not positive.
func TravelTime(distance, speed, factor float64) int {
	effective := speed * factor
	if effective <= 0 {
		return UnreachableTime
	}
	return int(math.Ceil(distance / effective))
}

// MergeObstacleInfo combines existing obstacle text with newly reported
// regions, dropping duplicates and keeping a stable order.
func MergeObstacleInfo(existing string, regions []ObstacleRegion) string {
	seen := make(map[string]bool)
	var merged []string
	for _, part := range strings.Split(existing, "; ") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		merged = append(merged, part)
	}

	labels := make([]string, 0, len(regions))
	for _, r := range regions {
		labels = append(labels, r.Label())
	}
	sort.Strings(labels)
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		merged = append(merged, l)
	}
	return strings.Join(merged, "; ")
}
