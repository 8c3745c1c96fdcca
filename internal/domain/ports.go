package domain

import (
	"context"
	"time"
)

// WeatherSource supplies readings from an external provider.
type WeatherSource interface {
	CurrentWeather(ctx context.Context, loc Location) (Reading, error)
	Forecast(ctx context.Context, loc Location, days int) ([]Reading, error)
	Historical(ctx context.Context, loc Location, start, end time.Time) (HistoricalSummary, error)
}

// LocationStore resolves location ids. ByID returns ErrLocationNotFound for unknown ids.
type LocationStore interface {
	ByID(ctx context.Context, id string) (Location, error)
}

// AlertDispatcher accepts notification payloads for delivery by another system.
type AlertDispatcher interface {
	Enqueue(ctx context.Context, payload NotificationPayload) error
}

// AlertStore persists alerts of record.
type AlertStore interface {
	CreateAlert(ctx context.Context, a Alert) error
	// GetAlert returns ErrAlertNotFound for unknown ids.
	GetAlert(ctx context.Context, id string) (Alert, error)
	// ListActive returns ACTIVE alerts for a location, or for every location
	// when locationID is empty, newest first.
	ListActive(ctx context.Context, locationID string) ([]Alert, error)
	ListActiveBySeverity(ctx context.Context, severity Severity) ([]Alert, error)
	// UpdateStatus moves an alert from one status to another only if it is
	// still in the from status. It reports whether a row changed.
	UpdateStatus(ctx context.Context, id string, from, to AlertStatus, reason string, at time.Time) (bool, error)
	// ExpireBefore moves every ACTIVE alert with expiresAt < now to EXPIRED.
	ExpireBefore(ctx context.Context, now time.Time) ([]AlertRef, error)
	// DeleteCreatedBefore hard-deletes alerts created before cutoff, any status.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) ([]AlertRef, error)
}
