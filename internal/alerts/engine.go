// Package alerts owns the weather-alert lifecycle: creation, automatic
// generation from threshold breaches, subscriptions, status transitions, and
// the scheduled expiry sweep and retention cleanup.
//
// Alerts of record live in a domain.AlertStore. The per-location active list is
// cached through the gateway and invalidated after every write; the write and
// the invalidation are separate steps, so a crash between them leaves a stale
// entry that expires with its TTL.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/cache"
	"github.com/couchcryptid/weather-cache-service/internal/domain"
	"github.com/couchcryptid/weather-cache-service/internal/observability"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// NSActiveByLocation is the cache namespace for per-location active lists.
const NSActiveByLocation = "alerts:location"

// DataSourceManual marks alerts created through the API without a source.
const DataSourceManual = "MANUAL"

// DefaultRetention is how long alerts are kept before cleanup deletes them.
const DefaultRetention = 30 * 24 * time.Hour

// Deps are the collaborators an Engine needs. Locations and Dispatcher are optional.
type Deps struct {
	Store      domain.AlertStore
	Locations  domain.LocationStore
	Dispatcher domain.AlertDispatcher
	Cache      *cache.Gateway
	Clock      clockwork.Clock
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Engine implements the alert lifecycle.
type Engine struct {
	store      domain.AlertStore
	locations  domain.LocationStore
	dispatcher domain.AlertDispatcher
	gw         *cache.Gateway
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	validate   *validator.Validate

	retention     time.Duration
	notifyTimeout time.Duration
	inflight      sync.WaitGroup
}

// NewEngine creates an Engine. A non-positive retention uses DefaultRetention.
func NewEngine(d Deps, retention, notifyTimeout time.Duration) *Engine {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return &Engine{
		store:         d.Store,
		locations:     d.Locations,
		dispatcher:    d.Dispatcher,
		gw:            d.Cache,
		clock:         d.Clock,
		logger:        d.Logger,
		metrics:       d.Metrics,
		validate:      newValidator(),
		retention:     retention,
		notifyTimeout: notifyTimeout,
	}
}

// CreateAlert validates, persists, and announces a new ACTIVE alert.
func (e *Engine) CreateAlert(ctx context.Context, in domain.NewAlert) (domain.Alert, error) {
	if e.locations != nil && in.LocationID != "" {
		if _, err := e.locations.ByID(ctx, in.LocationID); err != nil {
			if errors.Is(err, domain.ErrLocationNotFound) {
				return domain.Alert{}, err
			}
			return domain.Alert{}, fmt.Errorf("resolve location %s: %w", in.LocationID, err)
		}
	}
	return e.create(ctx, in)
}

func (e *Engine) create(ctx context.Context, in domain.NewAlert) (domain.Alert, error) {
	if sev, ok := domain.ParseSeverity(string(in.Severity)); ok {
		in.Severity = sev
	}
	in.Type = domain.AlertType(strings.ToUpper(strings.TrimSpace(string(in.Type))))
	if err := e.validate.Struct(in); err != nil {
		return domain.Alert{}, validationError(err)
	}

	now := e.clock.Now().UTC()
	if in.AlertTime.IsZero() {
		in.AlertTime = now
	}
	if !in.ExpiresAt.IsZero() && !in.ExpiresAt.After(in.AlertTime) {
		return domain.Alert{}, &domain.ValidationError{Field: "expires_at", Reason: "must be after alert_time"}
	}
	if in.DataSource == "" {
		in.DataSource = DataSourceManual
	}

	a := domain.Alert{
		ID:              uuid.NewString(),
		LocationID:      in.LocationID,
		Type:            in.Type,
		Title:           in.Title,
		Description:     in.Description,
		Severity:        in.Severity,
		AlertTime:       in.AlertTime.UTC(),
		Status:          domain.StatusActive,
		DataSource:      in.DataSource,
		ExternalAlertID: in.ExternalAlertID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !in.ExpiresAt.IsZero() {
		a.ExpiresAt = in.ExpiresAt.UTC()
	}

	if err := e.store.CreateAlert(ctx, a); err != nil {
		return domain.Alert{}, fmt.Errorf("persist alert: %w", err)
	}
	e.metrics.AlertsCreated.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	e.logger.Info("alert created",
		"alert_id", a.ID,
		"location", a.LocationID,
		"type", a.Type,
		"severity", a.Severity,
		"source", a.DataSource,
	)

	e.invalidate(ctx, a.LocationID)
	e.notify(ctx, a)
	return a, nil
}

// GenerateAutomaticAlerts evaluates the threshold rule table against a reading
// and creates an alert for each rule that fires. A rule is skipped while an
// ACTIVE alert of the same type already exists for the location.
func (e *Engine) GenerateAutomaticAlerts(ctx context.Context, loc domain.Location, r domain.Reading) ([]domain.Alert, error) {
	drafts := domain.EvaluateThresholds(r)
	if len(drafts) == 0 {
		return nil, nil
	}

	active, err := e.store.ListActive(ctx, loc.ID)
	if err != nil {
		return nil, fmt.Errorf("list active alerts for %s: %w", loc.ID, err)
	}
	existing := make(map[domain.AlertType]bool, len(active))
	for _, a := range active {
		existing[a.Type] = true
	}

	now := e.clock.Now().UTC()
	var created []domain.Alert
	var errs []error
	for _, d := range drafts {
		if existing[d.Type] {
			e.logger.Debug("automatic alert already active", "location", loc.ID, "type", d.Type)
			continue
		}
		title := d.Title
		if loc.Name != "" {
			title = fmt.Sprintf("%s for %s", d.Title, loc.Name)
		}
		a, err := e.create(ctx, domain.NewAlert{
			LocationID:  loc.ID,
			Type:        d.Type,
			Title:       title,
			Description: d.Description,
			Severity:    d.Severity,
			AlertTime:   now,
			ExpiresAt:   now.Add(d.Validity),
			DataSource:  domain.DataSourceAutomatic,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Type, err))
			continue
		}
		created = append(created, a)
	}
	return created, errors.Join(errs...)
}

// GetActiveAlerts returns the ACTIVE alerts for a location, cached for five minutes.
func (e *Engine) GetActiveAlerts(ctx context.Context, locationID string) ([]domain.Alert, error) {
	if locationID == "" {
		return nil, &domain.ValidationError{Field: "location", Reason: "required"}
	}
	return cache.GetOrCompute(ctx, e.gw, NSActiveByLocation, activeKey(locationID), cache.TTLActiveAlerts,
		func(ctx context.Context) ([]domain.Alert, error) {
			alerts, err := e.store.ListActive(ctx, locationID)
			if err != nil {
				return nil, fmt.Errorf("list active alerts: %w", err)
			}
			return nonNil(alerts), nil
		})
}

// ListActive returns every ACTIVE alert across locations.
func (e *Engine) ListActive(ctx context.Context) ([]domain.Alert, error) {
	alerts, err := e.store.ListActive(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	return nonNil(alerts), nil
}

// ListBySeverity returns ACTIVE alerts of one severity.
func (e *Engine) ListBySeverity(ctx context.Context, severity string) ([]domain.Alert, error) {
	sev, ok := domain.ParseSeverity(severity)
	if !ok {
		return nil, &domain.ValidationError{Field: "severity", Reason: "must be one of LOW, MEDIUM, HIGH, CRITICAL"}
	}
	alerts, err := e.store.ListActiveBySeverity(ctx, sev)
	if err != nil {
		return nil, fmt.Errorf("list alerts by severity: %w", err)
	}
	return nonNil(alerts), nil
}

// UpdateStatus moves an alert to status. Only ACTIVE to EXPIRED or CANCELLED is allowed.
func (e *Engine) UpdateStatus(ctx context.Context, id string, status domain.AlertStatus) (domain.Alert, error) {
	return e.transition(ctx, id, status, "")
}

// CancelAlert moves an ACTIVE alert to CANCELLED, recording reason.
func (e *Engine) CancelAlert(ctx context.Context, id, reason string) (domain.Alert, error) {
	return e.transition(ctx, id, domain.StatusCancelled, reason)
}

func (e *Engine) transition(ctx context.Context, id string, to domain.AlertStatus, reason string) (domain.Alert, error) {
	a, err := e.store.GetAlert(ctx, id)
	if err != nil {
		return domain.Alert{}, err
	}
	if !domain.CanTransition(a.Status, to) {
		return domain.Alert{}, &domain.TransitionError{AlertID: id, From: a.Status, To: to}
	}

	now := e.clock.Now().UTC()
	changed, err := e.store.UpdateStatus(ctx, id, a.Status, to, reason, now)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("update alert %s: %w", id, err)
	}
	if !changed {
		// Lost a race with the sweep or another operator; report what it is now.
		current, err := e.store.GetAlert(ctx, id)
		if err != nil {
			return domain.Alert{}, err
		}
		return domain.Alert{}, &domain.TransitionError{AlertID: id, From: current.Status, To: to}
	}

	e.metrics.AlertTransitions.WithLabelValues(string(to)).Inc()
	e.logger.Info("alert status changed", "alert_id", id, "from", a.Status, "to", to, "reason", reason)

	a.Status = to
	a.UpdatedAt = now
	if reason != "" {
		a.CancelReason = reason
	}
	e.invalidate(ctx, a.LocationID)
	return a, nil
}

// SweepExpired moves every ACTIVE alert whose expiry has passed to EXPIRED and
// returns how many moved. A second run with no new expiries moves none.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	refs, err := e.store.ExpireBefore(ctx, e.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire alerts: %w", err)
	}
	if len(refs) == 0 {
		return 0, nil
	}
	e.metrics.AlertsExpired.Add(float64(len(refs)))
	e.metrics.AlertTransitions.WithLabelValues(string(domain.StatusExpired)).Add(float64(len(refs)))
	e.invalidateRefs(ctx, refs)
	e.logger.Info("expired alerts swept", "count", len(refs))
	return len(refs), nil
}

// CleanupOldAlerts hard-deletes alerts created before the retention cutoff, in any status.
func (e *Engine) CleanupOldAlerts(ctx context.Context) (int, error) {
	cutoff := e.clock.Now().UTC().Add(-e.retention)
	refs, err := e.store.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete alerts before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if len(refs) == 0 {
		return 0, nil
	}
	e.metrics.AlertsDeleted.Add(float64(len(refs)))
	e.invalidateRefs(ctx, refs)
	e.logger.Info("old alerts cleaned up", "count", len(refs), "cutoff", cutoff)
	return len(refs), nil
}

// Close waits for in-flight notification enqueues or for ctx to end.
func (e *Engine) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notify hands the payload to the dispatcher without blocking the caller.
func (e *Engine) notify(ctx context.Context, a domain.Alert) {
	if e.dispatcher == nil {
		return
	}
	payload := domain.NotificationFor(a)
	ctx = context.WithoutCancel(ctx)

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		ctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
		defer cancel()

		if err := e.dispatcher.Enqueue(ctx, payload); err != nil {
			e.metrics.Notifications.WithLabelValues("error").Inc()
			e.logger.Warn("notification enqueue abandoned", "alert_id", payload.AlertID, "error", err)
			return
		}
		e.metrics.Notifications.WithLabelValues("sent").Inc()
	}()
}

func (e *Engine) invalidate(ctx context.Context, locationID string) {
	// Failures are logged by the gateway; the entry expires on its own.
	_ = e.gw.Delete(ctx, NSActiveByLocation, activeKey(locationID))
}

func (e *Engine) invalidateRefs(ctx context.Context, refs []domain.AlertRef) {
	seen := make(map[string]bool, len(refs))
	keys := make([]string, 0, len(refs))
	for _, r := range refs {
		if seen[r.LocationID] {
			continue
		}
		seen[r.LocationID] = true
		keys = append(keys, cache.Key(NSActiveByLocation, activeKey(r.LocationID)))
	}
	_, _ = e.gw.DeleteKeys(ctx, keys...)
}

func activeKey(locationID string) string {
	return locationID + ":active"
}

func nonNil(alerts []domain.Alert) []domain.Alert {
	if alerts == nil {
		return []domain.Alert{}
	}
	return alerts
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validationError converts the first validator failure into a domain.ValidationError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Field: "input", Reason: err.Error()}
	}
	fe := verrs[0]
	reason := fe.Tag()
	switch fe.Tag() {
	case "required":
		reason = "required"
	case "max":
		reason = "must be at most " + fe.Param() + " characters"
	case "oneof":
		reason = "must be one of " + fe.Param()
	}
	return &domain.ValidationError{Field: fe.Field(), Reason: reason}
}
