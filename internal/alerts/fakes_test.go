package alerts_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/domain"
)

// memAlertStore is an in-memory domain.AlertStore.
type memAlertStore struct {
	mu       sync.Mutex
	alerts   map[string]domain.Alert
	listErr  error
	listCall int
}

func newMemAlertStore() *memAlertStore {
	return &memAlertStore{alerts: map[string]domain.Alert{}}
}

func (m *memAlertStore) CreateAlert(_ context.Context, a domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts[a.ID]; ok {
		return errors.New("duplicate id")
	}
	m.alerts[a.ID] = a
	return nil
}

func (m *memAlertStore) GetAlert(_ context.Context, id string) (domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return domain.Alert{}, domain.ErrAlertNotFound
	}
	return a, nil
}

func (m *memAlertStore) ListActive(_ context.Context, locationID string) ([]domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCall++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.filter(func(a domain.Alert) bool {
		return a.Status == domain.StatusActive && (locationID == "" || a.LocationID == locationID)
	}), nil
}

func (m *memAlertStore) ListActiveBySeverity(_ context.Context, sev domain.Severity) ([]domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(a domain.Alert) bool {
		return a.Status == domain.StatusActive && a.Severity == sev
	}), nil
}

func (m *memAlertStore) UpdateStatus(_ context.Context, id string, from, to domain.AlertStatus, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = at
	if reason != "" {
		a.CancelReason = reason
	}
	m.alerts[id] = a
	return true, nil
}

func (m *memAlertStore) ExpireBefore(_ context.Context, now time.Time) ([]domain.AlertRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []domain.AlertRef
	for id, a := range m.alerts {
		if a.Status == domain.StatusActive && a.HasExpiry() && a.ExpiresAt.Before(now) {
			a.Status = domain.StatusExpired
			a.UpdatedAt = now
			m.alerts[id] = a
			refs = append(refs, domain.AlertRef{ID: id, LocationID: a.LocationID})
		}
	}
	return refs, nil
}

func (m *memAlertStore) DeleteCreatedBefore(_ context.Context, cutoff time.Time) ([]domain.AlertRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []domain.AlertRef
	for id, a := range m.alerts {
		if a.CreatedAt.Before(cutoff) {
			delete(m.alerts, id)
			refs = append(refs, domain.AlertRef{ID: id, LocationID: a.LocationID})
		}
	}
	return refs, nil
}

// setStatus forces a status, simulating a concurrent writer.
func (m *memAlertStore) setStatus(id string, st domain.AlertStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.alerts[id]
	a.Status = st
	m.alerts[id] = a
}

func (m *memAlertStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func (m *memAlertStore) filter(keep func(domain.Alert) bool) []domain.Alert {
	var out []domain.Alert
	for _, a := range m.alerts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// recordingDispatcher captures payloads; block holds Enqueue until released.
type recordingDispatcher struct {
	mu       sync.Mutex
	payloads []domain.NotificationPayload
	block    chan struct{}
	err      error
}

func (d *recordingDispatcher) Enqueue(ctx context.Context, p domain.NotificationPayload) error {
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.payloads = append(d.payloads, p)
	return nil
}

func (d *recordingDispatcher) sent() []domain.NotificationPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.NotificationPayload(nil), d.payloads...)
}

type fakeLocations map[string]domain.Location

func (f fakeLocations) ByID(_ context.Context, id string) (domain.Location, error) {
	loc, ok := f[id]
	if !ok {
		return domain.Location{}, domain.ErrLocationNotFound
	}
	return loc, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
