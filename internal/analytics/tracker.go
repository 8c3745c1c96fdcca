// Package analytics records usage counters and rankings without ever slowing
// or failing the request that triggered them.
//
// Tracking calls return immediately. The store writes run on a bounded set of
// goroutines, each under a short timeout; when every slot is busy the event is
// dropped, and when the store is unreachable the write is abandoned.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/cache"
	"github.com/couchcryptid/weather-cache-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Keys and key prefixes under the analytics namespace.
const (
	KeyEndpointUsage    = "analytics:endpoints:usage"
	KeyLocationRequests = "analytics:locations:requests"

	prefixDailyRequests  = "analytics:daily:requests:"
	prefixHourlyRequests = "analytics:hourly:requests:"
	prefixUserActivity   = "analytics:user:activity:"
	prefixUserErrors     = "analytics:user:errors:"
	prefixErrors         = "analytics:errors:"
	prefixEndpointErrors = "analytics:errors:endpoint:"
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02-15"

	kindRequest    = "request"
	kindError      = "error"
	kindPopularity = "popularity"

	defaultTrackTimeout = 500 * time.Millisecond
	defaultMaxInFlight  = 256
)

// DailyKey is the request counter for the UTC day containing t.
func DailyKey(t time.Time) string { return prefixDailyRequests + t.UTC().Format(dateLayout) }

// HourlyKey is the request counter for the UTC hour containing t.
func HourlyKey(t time.Time) string { return prefixHourlyRequests + t.UTC().Format(hourLayout) }

// UserActivityKey is the ranking of endpoints used by userID.
func UserActivityKey(userID string) string { return prefixUserActivity + userID }

// UserErrorsKey is the ranking of error types userID has run into.
func UserErrorsKey(userID string) string { return prefixUserErrors + userID }

// ErrorKey counts errors of one type on the UTC day containing t.
func ErrorKey(t time.Time, errorType string) string {
	return prefixErrors + t.UTC().Format(dateLayout) + ":" + errorType
}

// EndpointErrorKey counts errors on one endpoint on the UTC day containing t.
func EndpointErrorKey(t time.Time, endpoint string) string {
	return prefixEndpointErrors + t.UTC().Format(dateLayout) + ":" + endpoint
}

// Tracker records usage analytics.
type Tracker struct {
	gw      *cache.Gateway
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	timeout time.Duration
	slots   chan struct{}
	wg      sync.WaitGroup
}

// NewTracker creates a Tracker. Each tracking call gets timeout to finish its
// writes, and at most maxInFlight calls run at once.
func NewTracker(gw *cache.Gateway, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, timeout time.Duration, maxInFlight int) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = defaultTrackTimeout
	}
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &Tracker{
		gw:      gw,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		timeout: timeout,
		slots:   make(chan struct{}, maxInFlight),
	}
}

// TrackRequest counts one request against today's and this hour's totals, the
// endpoint ranking, and, when given, the location ranking and the user's activity.
func (t *Tracker) TrackRequest(endpoint, locationID, userID string) {
	now := t.clock.Now()
	t.spawn(kindRequest, func(ctx context.Context) error {
		if _, err := t.gw.IncrWithTTL(ctx, DailyKey(now), cache.TTLDailyCounter); err != nil {
			return err
		}
		if _, err := t.gw.IncrWithTTL(ctx, HourlyKey(now), cache.TTLHourlyCounter); err != nil {
			return err
		}
		if _, err := t.gw.ZIncrWithTTL(ctx, KeyEndpointUsage, endpoint, cache.TTLPopularity); err != nil {
			return err
		}
		if locationID != "" {
			if _, err := t.gw.ZIncrWithTTL(ctx, KeyLocationRequests, locationID, cache.TTLPopularity); err != nil {
				return err
			}
		}
		if userID != "" {
			if _, err := t.gw.ZIncrWithTTL(ctx, UserActivityKey(userID), endpoint, cache.TTLUserActivity); err != nil {
				return err
			}
		}
		return nil
	})
}

// TrackError counts one error by type and by endpoint for today, and, when
// given, against the user's error ranking.
func (t *Tracker) TrackError(endpoint, errorType, userID string) {
	now := t.clock.Now()
	t.spawn(kindError, func(ctx context.Context) error {
		if _, err := t.gw.IncrWithTTL(ctx, ErrorKey(now, errorType), cache.TTLErrorCounter); err != nil {
			return err
		}
		if _, err := t.gw.IncrWithTTL(ctx, EndpointErrorKey(now, endpoint), cache.TTLErrorCounter); err != nil {
			return err
		}
		if userID != "" {
			if _, err := t.gw.ZIncrWithTTL(ctx, UserErrorsKey(userID), errorType, cache.TTLUserActivity); err != nil {
				return err
			}
		}
		return nil
	})
}

// TrackPopularity adds one to member's score in the ranking at key.
func (t *Tracker) TrackPopularity(key, member string) {
	t.spawn(kindPopularity, func(ctx context.Context) error {
		_, err := t.gw.ZIncrWithTTL(ctx, key, member, cache.TTLPopularity)
		return err
	})
}

// Flush waits for every in-flight tracking call to finish or give up.
func (t *Tracker) Flush() {
	t.wg.Wait()
}

func (t *Tracker) spawn(kind string, work func(context.Context) error) {
	select {
	case t.slots <- struct{}{}:
	default:
		t.metrics.Tracking.WithLabelValues(kind, "dropped").Inc()
		t.logger.Debug("analytics event dropped", "kind", kind)
		return
	}

	t.wg.Add(1)
	go func() {
		defer func() {
			<-t.slots
			t.wg.Done()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		// The gateway has already logged the store failure.
		if err := work(ctx); err != nil {
			t.metrics.Tracking.WithLabelValues(kind, "degraded").Inc()
			return
		}
		t.metrics.Tracking.WithLabelValues(kind, "ok").Inc()
	}()
}
