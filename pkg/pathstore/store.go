// Package pathstore persists navigation paths. The engine commits a path
// here before the registry reflects it; a failed save leaves the session's
// path unchanged.
package pathstore

import (
	"context"
	"sort"
	"sync"

	"github.com/txn2/arnav-platform/pkg/nav"
)

// Repository defines navigation path persistence.
type Repository interface {
	// Save upserts a path by id.
	Save(ctx context.Context, path *nav.NavigationPath) error

	// LatestByVenue returns the most recently updated path for a venue,
	// or nil, nil when the venue has none.
	LatestByVenue(ctx context.Context, venueID int64) (*nav.NavigationPath, error)

	// ByUser returns a user's paths, most recent first.
	ByUser(ctx context.Context, userID int64) ([]*nav.NavigationPath, error)

	// ByStatus returns paths in the given status.
	ByStatus(ctx context.Context, status nav.PathStatus) ([]*nav.NavigationPath, error)

	// SetStatusByVenue updates the status of all of a venue's paths and
	// returns the number affected.
	SetStatusByVenue(ctx context.Context, venueID int64, status nav.PathStatus) (int, error)

	// Close releases resources.
	Close() error
}

// MemoryRepository implements Repository with an in-memory map. It backs
// tests and standalone runs without a database.
type MemoryRepository struct {
	mu    sync.RWMutex
	paths map[string]*nav.NavigationPath
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{paths: make(map[string]*nav.NavigationPath)}
}

// Save upserts a path by id.
func (r *MemoryRepository) Save(_ context.Context, path *nav.NavigationPath) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[path.ID] = path.Clone()
	return nil
}

// LatestByVenue returns the most recently updated path for a venue.
func (r *MemoryRepository) LatestByVenue(_ context.Context, venueID int64) (*nav.NavigationPath, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *nav.NavigationPath
	for _, p := range r.paths {
		if p.VenueID != venueID {
			continue
		}
		if latest == nil || p.UpdatedAt.After(latest.UpdatedAt) {
			latest = p
		}
	}
	return latest.Clone(), nil
}

// ByUser returns a user's paths, most recent first.
func (r *MemoryRepository) ByUser(_ context.Context, userID int64) ([]*nav.NavigationPath, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*nav.NavigationPath
	for _, p := range r.paths {
		if p.UserID == userID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// ByStatus returns paths in the given status.
func (r *MemoryRepository) ByStatus(_ context.Context, status nav.PathStatus) ([]*nav.NavigationPath, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*nav.NavigationPath
	for _, p := range r.paths {
		if p.Status == status {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// SetStatusByVenue updates the status of all of a venue's paths.
func (r *MemoryRepository) SetStatusByVenue(_ context.Context, venueID int64, status nav.PathStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.paths {
		if p.VenueID == venueID {
			p.Status = status
			n++
		}
	}
	return n, nil
}

// Close does nothing.
func (*MemoryRepository) Close() error {
	return nil
}

// Verify interface compliance.
var _ Repository = (*MemoryRepository)(nil)
