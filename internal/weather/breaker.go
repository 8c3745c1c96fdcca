package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/domain"
	"github.com/sony/gobreaker"
)

// BreakerSource wraps a WeatherSource with a circuit breaker. While the breaker
// is open every call fails fast with ErrUpstreamUnavailable.
type BreakerSource struct {
	next domain.WeatherSource
	cb   *gobreaker.CircuitBreaker
}

// BreakerSettings tunes the breaker. Zero values take the defaults below.
type BreakerSettings struct {
	MaxRequests         uint32        // probes allowed while half-open
	Interval            time.Duration // closed-state counter reset period
	Timeout             time.Duration // open-state duration before half-open
	ConsecutiveFailures uint32        // failures that trip the breaker
}

// NewBreakerSource decorates next with a breaker named name.
func NewBreakerSource(name string, next domain.WeatherSource, settings BreakerSettings, logger *slog.Logger) *BreakerSource {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval == 0 {
		settings.Interval = time.Minute
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	trip := settings.ConsecutiveFailures

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("weather source breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Cancellations come from the caller, not the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerSource{next: next, cb: cb}
}

func (b *BreakerSource) CurrentWeather(ctx context.Context, loc domain.Location) (domain.Reading, error) {
	return execute(b, func() (domain.Reading, error) { return b.next.CurrentWeather(ctx, loc) })
}

func (b *BreakerSource) Forecast(ctx context.Context, loc domain.Location, days int) ([]domain.Reading, error) {
	return execute(b, func() ([]domain.Reading, error) { return b.next.Forecast(ctx, loc, days) })
}

func (b *BreakerSource) Historical(ctx context.Context, loc domain.Location, start, end time.Time) (domain.HistoricalSummary, error) {
	return execute(b, func() (domain.HistoricalSummary, error) { return b.next.Historical(ctx, loc, start, end) })
}

// State reports the breaker state, for logs and tests.
func (b *BreakerSource) State() gobreaker.State { return b.cb.State() }

func execute[T any](b *BreakerSource, fn func() (T, error)) (T, error) {
	var zero T
	res, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
		}
		return zero, err
	}
	return res.(T), nil
}

var _ domain.WeatherSource = (*BreakerSource)(nil)
