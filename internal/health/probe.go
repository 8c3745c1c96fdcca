// Package health round-trips a probe key through the key-value store to
// report whether the store is usable.
package health

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/cache"
	"github.com/couchcryptid/weather-cache-service/internal/kvstore"
	"github.com/couchcryptid/weather-cache-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Probe outcomes.
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

const probePrefix = cache.PrefixHealth + ":probe:"

// Report is the outcome of one probe round-trip.
type Report struct {
	Status    string            `json:"status"`
	Details   map[string]string `json:"details,omitempty"`
	Error     string            `json:"error,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
	Latency   time.Duration     `json:"latency_ns"`
}

// Up reports whether the probe succeeded.
func (r Report) Up() bool { return r.Status == StatusUp }

// Probe checks the key-value store directly, outside the cache gateway.
type Probe struct {
	store   kvstore.Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	backend string
}

// NewProbe creates a Probe. backend names the store in report details.
func NewProbe(store kvstore.Store, backend string, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Probe {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Probe{store: store, clock: clock, logger: logger, metrics: metrics, backend: backend}
}

// CheckHealth writes a unique probe key, reads it back, deletes it, and
// compares. Any failure along the way yields DOWN with the error captured.
func (p *Probe) CheckHealth(ctx context.Context) Report {
	start := p.clock.Now()
	err := p.roundTrip(ctx)
	r := Report{
		Status:    StatusUp,
		Details:   map[string]string{"backend": p.backend},
		CheckedAt: start.UTC(),
		Latency:   p.clock.Since(start),
	}
	if err != nil {
		r.Status = StatusDown
		r.Error = err.Error()
	}
	p.record(r)
	return r
}

// CheckReadiness reports the probe outcome as an error for the readiness endpoint.
func (p *Probe) CheckReadiness(ctx context.Context) error {
	r := p.CheckHealth(ctx)
	if !r.Up() {
		return fmt.Errorf("key-value store: %s", r.Error)
	}
	return nil
}

var errMismatch = errors.New("probe value mismatch")

func (p *Probe) roundTrip(ctx context.Context) error {
	key := probePrefix + uuid.NewString()
	want := []byte(p.clock.Now().UTC().Format(time.RFC3339Nano))

	if err := p.store.Set(ctx, key, want, cache.TTLHealthProbe); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	got, err := p.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	if _, err := p.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	if !bytes.Equal(got, want) {
		return errMismatch
	}
	return nil
}

func (p *Probe) record(r Report) {
	if r.Up() {
		p.metrics.StoreUp.Set(1)
		return
	}
	p.metrics.StoreUp.Set(0)
	p.logger.Warn("key-value store probe failed", "error", r.Error, "latency", r.Latency)
}
