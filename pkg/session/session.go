// Package session owns the live session set for the navigation platform.
// It defines the Registry interface for session bookkeeping and the Session
// type that represents one user's ongoing real-time navigation interaction.
package session

import (
	"context"
	"maps"
	"time"

	"github.com/txn2/arnav-platform/pkg/nav"
)

// Session represents an active navigation session.
type Session struct {
	// ID is the unique session identifier.
	ID string

	// UserID identifies the session owner.
	UserID int64

	// Device describes the client device, including battery level.
	Device nav.DeviceInfo

	// CurrentPath is the active navigation path, nil until first planned.
	CurrentPath *nav.NavigationPath

	// PowerMode is the active quality/power tradeoff.
	PowerMode nav.PowerMode

	// Settings holds the optimization settings chosen for PowerMode.
	Settings map[string]any

	// CreatedAt is when the session was admitted.
	CreatedAt time.Time

	// LastActiveAt is the most recent mutation timestamp. Sessions idle
	// past the registry's threshold are removed by CleanupExpired.
	LastActiveAt time.Time
}

// clone returns a snapshot copy so callers never alias registry state.
func (s *Session) clone() *Session {
	cp := *s
	cp.CurrentPath = s.CurrentPath.Clone()
	if s.Settings != nil {
		cp.Settings = make(map[string]any, len(s.Settings))
		maps.Copy(cp.Settings, s.Settings)
	}
	return &cp
}

// Registry is the single source of truth for which sessions exist. All
// session mutation is routed through registry methods.
type Registry interface {
	// Create admits a new session. It fails with nav.ErrInvalidArgument,
	// nav.ErrSessionLimitExceeded, or nav.ErrSessionConflict. The
	// admission check and insert are indivisible: the active count never
	// exceeds the configured maximum, even under concurrent creates.
	Create(ctx context.Context, id string, userID int64, device nav.DeviceInfo) (*Session, error)

	// Get returns a snapshot of the session or nav.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// UpdatePath replaces the session's current path and bumps
	// LastActiveAt. Updates to the same session are serialized; updates
	// to different sessions proceed independently.
	UpdatePath(ctx context.Context, id string, path *nav.NavigationPath) error

	// SetPowerMode records the power mode and its settings, serialized
	// the same way as UpdatePath.
	SetPowerMode(ctx context.Context, id string, mode nav.PowerMode, settings map[string]any) error

	// Close removes the session. It returns false, not an error, when
	// the session did not exist.
	Close(ctx context.Context, id string) bool

	// CleanupExpired removes every session idle longer than the
	// threshold and returns the removed ids.
	CleanupExpired(ctx context.Context, idleThreshold time.Duration) []string

	// Count returns the active session count.
	Count() int

	// ListIDs returns a snapshot of active session ids.
	ListIDs() []string
}
