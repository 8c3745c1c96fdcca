package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/domain"
)

var _ domain.LocationStore = (*Store)(nil)

// ByID resolves a location id.
func (s *Store) ByID(ctx context.Context, id string) (domain.Location, error) {
	var loc domain.Location
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, country, latitude, longitude FROM locations WHERE id = ?`, id,
	).Scan(&loc.ID, &loc.Name, &loc.Country, &loc.Lat, &loc.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Location{}, domain.ErrLocationNotFound
	}
	if err != nil {
		return domain.Location{}, fmt.Errorf("get location %s: %w", id, err)
	}
	return loc, nil
}

// UpsertLocation inserts a location or replaces its attributes.
func (s *Store) UpsertLocation(ctx context.Context, loc domain.Location) error {
	if loc.ID == "" {
		return &domain.ValidationError{Field: "id", Reason: "required"}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO locations (id, name, country, latitude, longitude, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	country = excluded.country,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	updated_at = excluded.updated_at`,
		loc.ID, loc.Name, loc.Country, loc.Lat, loc.Lon, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert location %s: %w", loc.ID, err)
	}
	return nil
}
