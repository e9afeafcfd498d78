package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
)

// LocationHistoryRepo implements ports.LocationHistoryRepository over the
// locations table.
type LocationHistoryRepo struct {
	db *DB
}

func NewLocationHistoryRepo(db *DB) *LocationHistoryRepo {
	return &LocationHistoryRepo{db: db}
}

// Append stores one accepted report.
func (r *LocationHistoryRepo) Append(ctx context.Context, pos domain.AgentPosition) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO locations (user_id, latitude, longitude, timestamp)
		VALUES ($1, $2, $3, $4)
	`, pos.AgentID, pos.Point.Lat, pos.Point.Lon, pos.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// LatestPerAgent returns the newest row per user recorded at or after since,
// joined with the user's name.
func (r *LocationHistoryRepo) LatestPerAgent(ctx context.Context, since time.Time) ([]domain.AgentPosition, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT ON (l.user_id)
			l.user_id, COALESCE(u.name, ''), l.latitude, l.longitude, l.timestamp
		FROM locations l
		LEFT JOIN users u ON u.id = l.user_id
		WHERE l.timestamp >= $1
		ORDER BY l.user_id, l.timestamp DESC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query latest locations: %w", err)
	}
	defer rows.Close()

	var positions []domain.AgentPosition
	for rows.Next() {
		var p domain.AgentPosition
		if err := rows.Scan(&p.AgentID, &p.Name, &p.Point.Lat, &p.Point.Lon, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		p.RecordedAt = p.RecordedAt.UTC()
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
