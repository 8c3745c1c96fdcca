// Package weather serves cached weather reads over a WeatherSource. Each
// freshly computed current reading is handed to the alert evaluator, and every
// current-weather request bumps the popular-locations ranking off the request path.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/cache"
	"github.com/couchcryptid/weather-cache-service/internal/domain"
	"github.com/couchcryptid/weather-cache-service/internal/kvstore"
)

// Cache namespaces and keys owned by this package.
const (
	NSCurrent           = "weather:current"
	NSForecast          = "weather:forecast"
	NSHistorical        = "weather:historical"
	NSPreferences       = "weather:preferences"
	KeyPopularLocations = "weather:popular:locations"
)

// MaxForecastDays is the longest forecast the source serves.
const MaxForecastDays = 16

const dateLayout = "2006-01-02"

// Evaluator synthesizes alerts from a computed reading.
type Evaluator interface {
	GenerateAutomaticAlerts(ctx context.Context, loc domain.Location, r domain.Reading) ([]domain.Alert, error)
}

// PopularityRecorder bumps a member of a ranking without blocking the caller.
type PopularityRecorder interface {
	TrackPopularity(key, member string)
}

// Service implements the cache-read endpoints.
type Service struct {
	gw         *cache.Gateway
	source     domain.WeatherSource
	locations  domain.LocationStore
	evaluator  Evaluator
	popularity PopularityRecorder
	logger     *slog.Logger
}

// NewService creates a Service. evaluator may be nil to skip alert generation,
// and popularity may be nil to skip the popular-locations ranking.
func NewService(gw *cache.Gateway, source domain.WeatherSource, locations domain.LocationStore, evaluator Evaluator, popularity PopularityRecorder, logger *slog.Logger) *Service {
	return &Service{
		gw:         gw,
		source:     source,
		locations:  locations,
		evaluator:  evaluator,
		popularity: popularity,
		logger:     logger,
	}
}

// CurrentWeather returns the current reading for a location, cached for five minutes.
func (s *Service) CurrentWeather(ctx context.Context, locationID string) (domain.Reading, error) {
	if locationID == "" {
		return domain.Reading{}, &domain.ValidationError{Field: "location", Reason: "required"}
	}

	if s.popularity != nil {
		s.popularity.TrackPopularity(KeyPopularLocations, locationID)
	}

	return cache.GetOrCompute(ctx, s.gw, NSCurrent, locationID, cache.TTLCurrentWeather,
		func(ctx context.Context) (domain.Reading, error) {
			loc, err := s.resolve(ctx, locationID)
			if err != nil {
				return domain.Reading{}, err
			}
			r, err := s.source.CurrentWeather(ctx, loc)
			if err != nil {
				return domain.Reading{}, upstream(err)
			}
			r.LocationID = loc.ID
			s.evaluate(ctx, loc, r)
			return r, nil
		})
}

// Forecast returns a daily forecast of 1 to MaxForecastDays days, cached for thirty minutes.
func (s *Service) Forecast(ctx context.Context, locationID string, days int) ([]domain.Reading, error) {
	if locationID == "" {
		return nil, &domain.ValidationError{Field: "location", Reason: "required"}
	}
	if days < 1 || days > MaxForecastDays {
		return nil, &domain.ValidationError{Field: "days", Reason: fmt.Sprintf("must be between 1 and %d", MaxForecastDays)}
	}

	key := fmt.Sprintf("%s:%d", locationID, days)
	return cache.GetOrCompute(ctx, s.gw, NSForecast, key, cache.TTLForecast,
		func(ctx context.Context) ([]domain.Reading, error) {
			loc, err := s.resolve(ctx, locationID)
			if err != nil {
				return nil, err
			}
			readings, err := s.source.Forecast(ctx, loc, days)
			if err != nil {
				return nil, upstream(err)
			}
			for i := range readings {
				readings[i].LocationID = loc.ID
			}
			return readings, nil
		})
}

// Historical returns a summary over the inclusive date range, cached for two hours.
func (s *Service) Historical(ctx context.Context, locationID string, start, end time.Time) (domain.HistoricalSummary, error) {
	if locationID == "" {
		return domain.HistoricalSummary{}, &domain.ValidationError{Field: "location", Reason: "required"}
	}
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return domain.HistoricalSummary{}, &domain.ValidationError{Field: "end", Reason: "must not be before start"}
	}

	key := fmt.Sprintf("%s:%s:%s", locationID, start.Format(dateLayout), end.Format(dateLayout))
	return cache.GetOrCompute(ctx, s.gw, NSHistorical, key, cache.TTLHistorical,
		func(ctx context.Context) (domain.HistoricalSummary, error) {
			loc, err := s.resolve(ctx, locationID)
			if err != nil {
				return domain.HistoricalSummary{}, err
			}
			sum, err := s.source.Historical(ctx, loc, start, end)
			if err != nil {
				return domain.HistoricalSummary{}, upstream(err)
			}
			sum.LocationID = loc.ID
			return sum, nil
		})
}

// Preferences returns a user's stored preferences and whether any were found.
// A store failure is returned as a StoreError so callers can report unavailability.
func (s *Service) Preferences(ctx context.Context, userID string) (domain.Preferences, bool, error) {
	var p domain.Preferences
	found, err := s.gw.Get(ctx, NSPreferences, userID, &p)
	if err != nil {
		return domain.Preferences{}, false, err
	}
	return p, found, nil
}

// PutPreferences stores a user's preferences for an hour.
func (s *Service) PutPreferences(ctx context.Context, userID string, p domain.Preferences) error {
	if userID == "" {
		return &domain.ValidationError{Field: "user", Reason: "required"}
	}
	return s.gw.Put(ctx, NSPreferences, userID, p, cache.TTLPreferences)
}

// ClearLocationCache evicts the current, forecast, and historical entries for a location.
func (s *Service) ClearLocationCache(ctx context.Context, locationID string) (int, error) {
	if locationID == "" {
		return 0, &domain.ValidationError{Field: "location", Reason: "required"}
	}
	id := kvstore.EscapeGlob(locationID)
	total := 0
	for _, pattern := range []string{
		cache.Key(NSCurrent, id),
		cache.Key(NSForecast, id) + ":*",
		cache.Key(NSHistorical, id) + ":*",
	} {
		n, err := s.gw.EvictNamespace(ctx, pattern)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// RankedLocation is one entry of the popular-locations ranking.
type RankedLocation struct {
	LocationID string `json:"location_id"`
	Requests   int64  `json:"requests"`
}

// PopularLocations is the ranking read, tagged with store availability.
type PopularLocations struct {
	Locations []RankedLocation `json:"locations"`
	Available bool             `json:"available"`
}

// PopularLocations returns the most requested locations. Rankings are lifetime-cumulative.
func (s *Service) PopularLocations(ctx context.Context, limit int) PopularLocations {
	members, err := s.gw.Top(ctx, KeyPopularLocations, limit)
	if err != nil {
		return PopularLocations{Locations: []RankedLocation{}, Available: false}
	}
	out := make([]RankedLocation, 0, len(members))
	for _, m := range members {
		out = append(out, RankedLocation{LocationID: m.Member, Requests: int64(m.Score)})
	}
	return PopularLocations{Locations: out, Available: true}
}

func (s *Service) resolve(ctx context.Context, id string) (domain.Location, error) {
	loc, err := s.locations.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrLocationNotFound) {
			return domain.Location{}, err
		}
		return domain.Location{}, fmt.Errorf("resolve location %s: %w", id, err)
	}
	return loc, nil
}

// evaluate runs threshold evaluation for a computed reading. Failures are
// logged and never reach the weather caller.
func (s *Service) evaluate(ctx context.Context, loc domain.Location, r domain.Reading) {
	if s.evaluator == nil {
		return
	}
	alerts, err := s.evaluator.GenerateAutomaticAlerts(ctx, loc, r)
	if err != nil {
		s.logger.Warn("automatic alert evaluation failed", "location", loc.ID, "error", err)
		return
	}
	if len(alerts) > 0 {
		s.logger.Info("automatic alerts generated", "location", loc.ID, "count", len(alerts))
	}
}

func upstream(err error) error {
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
