// Package postgres provides PostgreSQL storage for navigation paths.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/arnav-platform/pkg/nav"
	"github.com/txn2/arnav-platform/pkg/pathstore"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// pathColumns lists columns returned by path SELECT queries.
var pathColumns = []string{
	"id", "points", "distance_estimate", "estimated_time", "obstacle_info",
	"status", "user_id", "venue_id", "version", "created_at", "updated_at",
}

// Store implements pathstore.Repository using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL path store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save upserts a path by id.
func (s *Store) Save(ctx context.Context, path *nav.NavigationPath) error {
	points, err := json.Marshal(path.Points)
	if err != nil {
		return fmt.Errorf("encoding path points: %w", err)
	}

	query := `
		INSERT INTO navigation_paths
		(id, points, distance_estimate, estimated_time, obstacle_info, status, user_id, venue_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			points = EXCLUDED.points,
			distance_estimate = EXCLUDED.distance_estimate,
			estimated_time = EXCLUDED.estimated_time,
			obstacle_info = EXCLUDED.obstacle_info,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		path.ID,
		points,
		path.DistanceEstimate,
		path.EstimatedTime,
		path.ObstacleInfo,
		string(path.Status),
		path.UserID,
		path.VenueID,
		path.Version,
		path.CreatedAt,
		path.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting navigation path: %w", err)
	}
	return nil
}

// LatestByVenue returns the most recently updated path for a venue.
func (s *Store) LatestByVenue(ctx context.Context, venueID int64) (*nav.NavigationPath, error) {
	qb := psq.Select(pathColumns...).
		From("navigation_paths").
		Where(sq.Eq{"venue_id": venueID}).
		OrderBy("updated_at DESC").
		Limit(1)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building latest-by-venue query: %w", err)
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	path, err := scanPath(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Repository specifies nil,nil for not-found
	}
	return path, err
}

// ByUser returns a user's paths, most recent first.
func (s *Store) ByUser(ctx context.Context, userID int64) ([]*nav.NavigationPath, error) {
	qb := psq.Select(pathColumns...).
		From("navigation_paths").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("updated_at DESC")
	return s.queryPaths(ctx, qb)
}

// ByStatus returns paths in the given status.
func (s *Store) ByStatus(ctx context.Context, status nav.PathStatus) ([]*nav.NavigationPath, error) {
	qb := psq.Select(pathColumns...).
		From("navigation_paths").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("updated_at DESC")
	return s.queryPaths(ctx, qb)
}

// SetStatusByVenue updates the status of all of a venue's paths.
func (s *Store) SetStatusByVenue(ctx context.Context, venueID int64, status nav.PathStatus) (int, error) {
	qb := psq.Update("navigation_paths").
		Set("status", string(status)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"venue_id": venueID})

	query, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building status update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("updating path status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(n), nil
}

// Close does nothing; the store does not own the database handle.
func (*Store) Close() error {
	return nil
}

func (s *Store) queryPaths(ctx context.Context, qb sq.SelectBuilder) ([]*nav.NavigationPath, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building path query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying navigation paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []*nav.NavigationPath
	for rows.Next() {
		p, err := scanPath(rows)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating path rows: %w", err)
	}
	return paths, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPath(row rowScanner) (*nav.NavigationPath, error) {
	var p nav.NavigationPath
	var points []byte
	var status string

	err := row.Scan(
		&p.ID,
		&points,
		&p.DistanceEstimate,
		&p.EstimatedTime,
		&p.ObstacleInfo,
		&status,
		&p.UserID,
		&p.VenueID,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = nav.PathStatus(status)
	if len(points) > 0 {
		if err := json.Unmarshal(points, &p.Points); err != nil {
			return nil, fmt.Errorf("decoding path points: %w", err)
		}
	}
	return &p, nil
}

// Verify interface compliance.
var _ pathstore.Repository = (*Store)(nil)
