package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/domain"
)

const alertColumns = `id, location_id, alert_type, title, description, severity, alert_time,
	expires_at, status, data_source, external_alert_id, cancel_reason, created_at, updated_at`

var _ domain.AlertStore = (*Store)(nil)

// CreateAlert inserts a new alert row.
func (s *Store) CreateAlert(ctx context.Context, a domain.Alert) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO alerts (`+alertColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.LocationID,
		string(a.Type),
		a.Title,
		a.Description,
		string(a.Severity),
		toMillis(a.AlertTime),
		nullMillis(a.ExpiresAt),
		string(a.Status),
		a.DataSource,
		a.ExternalAlertID,
		a.CancelReason,
		toMillis(a.CreatedAt),
		toMillis(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", a.ID, err)
	}
	return nil
}

// GetAlert loads one alert by id.
func (s *Store) GetAlert(ctx context.Context, id string) (domain.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, domain.ErrAlertNotFound
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("get alert %s: %w", id, err)
	}
	return a, nil
}

// ListActive returns ACTIVE alerts, newest first, for one location or for all when locationID is empty.
func (s *Store) ListActive(ctx context.Context, locationID string) ([]domain.Alert, error) {
	if locationID == "" {
		return s.query(ctx, `SELECT `+alertColumns+` FROM alerts
WHERE status = ? ORDER BY created_at DESC, id`, string(domain.StatusActive))
	}
	return s.query(ctx, `SELECT `+alertColumns+` FROM alerts
WHERE location_id = ? AND status = ? ORDER BY created_at DESC, id`, locationID, string(domain.StatusActive))
}

// ListActiveBySeverity returns ACTIVE alerts of one severity, newest first.
func (s *Store) ListActiveBySeverity(ctx context.Context, severity domain.Severity) ([]domain.Alert, error) {
	return s.query(ctx, `SELECT `+alertColumns+` FROM alerts
WHERE severity = ? AND status = ? ORDER BY created_at DESC, id`, string(severity), string(domain.StatusActive))
}

// UpdateStatus changes the status only while the row still holds from.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to domain.AlertStatus, reason string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE alerts
SET status = ?, updated_at = ?, cancel_reason = CASE WHEN ? = '' THEN cancel_reason ELSE ? END
WHERE id = ? AND status = ?`,
		string(to), toMillis(at), reason, reason, id, string(from))
	if err != nil {
		return false, fmt.Errorf("update alert %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpireBefore marks ACTIVE alerts whose expiry is strictly before now as EXPIRED.
func (s *Store) ExpireBefore(ctx context.Context, now time.Time) ([]domain.AlertRef, error) {
	ms := toMillis(now)
	return s.refs(ctx, `
UPDATE alerts SET status = ?, updated_at = ?
WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?
RETURNING id, location_id`,
		string(domain.StatusExpired), ms, string(domain.StatusActive), ms)
}

// DeleteCreatedBefore removes every alert created before cutoff.
func (s *Store) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.AlertRef, error) {
	return s.refs(ctx, `DELETE FROM alerts WHERE created_at < ? RETURNING id, location_id`, toMillis(cutoff))
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) refs(ctx context.Context, q string, args ...any) ([]domain.AlertRef, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AlertRef
	for rows.Next() {
		var r domain.AlertRef
		if err := rows.Scan(&r.ID, &r.LocationID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(sc scanner) (domain.Alert, error) {
	var (
		a                           domain.Alert
		typ, severity, status       string
		alertTime, created, updated int64
		expires                     sql.NullInt64
	)
	err := sc.Scan(&a.ID, &a.LocationID, &typ, &a.Title, &a.Description, &severity, &alertTime,
		&expires, &status, &a.DataSource, &a.ExternalAlertID, &a.CancelReason, &created, &updated)
	if err != nil {
		return domain.Alert{}, err
	}
	a.Type = domain.AlertType(typ)
	a.Severity = domain.Severity(severity)
	a.Status = domain.AlertStatus(status)
	a.AlertTime = fromMillis(alertTime)
	if expires.Valid {
		a.ExpiresAt = fromMillis(expires.Int64)
	}
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}
