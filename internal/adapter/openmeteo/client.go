// Package openmeteo implements domain.WeatherSource on the Open-Meteo forecast
// and archive APIs.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/config"
	"github.com/couchcryptid/weather-cache-service/internal/domain"
)

const dateLayout = "2006-01-02"

// Client queries Open-Meteo. It needs no API key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	archiveURL string
	logger     *slog.Logger
}

var _ domain.WeatherSource = (*Client)(nil)

// NewClient creates a client for the configured endpoints.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.WeatherTimeout},
		baseURL:    cfg.WeatherBaseURL,
		archiveURL: cfg.WeatherArchiveURL,
		logger:     logger,
	}
}

// CurrentWeather returns the latest observation for loc.
func (c *Client) CurrentWeather(ctx context.Context, loc domain.Location) (domain.Reading, error) {
	params := coords(loc)
	params.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation,weather_code")

	var resp currentResponse
	if err := c.doRequest(ctx, c.baseURL+"/forecast", params, "current", &resp); err != nil {
		return domain.Reading{}, err
	}
	observed, err := time.ParseInLocation("2006-01-02T15:04", resp.Current.Time, time.UTC)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("parse observation time %q: %w", resp.Current.Time, err)
	}
	return domain.Reading{
		LocationID:    loc.ID,
		Temperature:   resp.Current.Temperature,
		Humidity:      resp.Current.Humidity,
		WindSpeed:     resp.Current.WindSpeed,
		Precipitation: resp.Current.Precipitation,
		Condition:     Condition(resp.Current.WeatherCode),
		ObservedAt:    observed,
	}, nil
}

// Forecast returns one reading per day, starting today. Each reading carries
// the day's maximum temperature and wind speed.
func (c *Client) Forecast(ctx context.Context, loc domain.Location, days int) ([]domain.Reading, error) {
	params := coords(loc)
	params.Set("daily", "temperature_2m_max,wind_speed_10m_max,precipitation_sum,weather_code")
	params.Set("forecast_days", strconv.Itoa(days))

	var resp dailyResponse
	if err := c.doRequest(ctx, c.baseURL+"/forecast", params, "forecast", &resp); err != nil {
		return nil, err
	}
	d := resp.Daily
	if err := d.check(); err != nil {
		return nil, err
	}

	out := make([]domain.Reading, 0, len(d.Time))
	for i, day := range d.Time {
		observed, err := time.ParseInLocation(dateLayout, day, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse forecast day %q: %w", day, err)
		}
		out = append(out, domain.Reading{
			LocationID:    loc.ID,
			Temperature:   d.TempMax[i],
			WindSpeed:     d.WindMax[i],
			Precipitation: d.Precipitation[i],
			Condition:     Condition(d.WeatherCode[i]),
			ObservedAt:    observed,
		})
	}
	return out, nil
}

// Historical summarizes archived daily values between start and end inclusive.
func (c *Client) Historical(ctx context.Context, loc domain.Location, start, end time.Time) (domain.HistoricalSummary, error) {
	params := coords(loc)
	params.Set("start_date", start.UTC().Format(dateLayout))
	params.Set("end_date", end.UTC().Format(dateLayout))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,temperature_2m_mean,wind_speed_10m_max,precipitation_sum")

	var resp dailyResponse
	if err := c.doRequest(ctx, c.archiveURL+"/archive", params, "historical", &resp); err != nil {
		return domain.HistoricalSummary{}, err
	}
	return summarize(loc.ID, start, end, resp.Daily), nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, source string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s weather request: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	c.logger.Debug("weather source request", "source", source, "duration", time.Since(start))
	return nil
}

func coords(loc domain.Location) url.Values {
	return url.Values{
		"latitude":  {strconv.FormatFloat(loc.Lat, 'f', 4, 64)},
		"longitude": {strconv.FormatFloat(loc.Lon, 'f', 4, 64)},
		"timezone":  {"UTC"},
	}
}

func summarize(locationID string, start, end time.Time, d daily) domain.HistoricalSummary {
	s := domain.HistoricalSummary{LocationID: locationID, Start: start, End: end}
	var sum float64
	for i := range d.Time {
		if i >= len(d.TempMean) || i >= len(d.TempMin) || i >= len(d.TempMax) {
			break
		}
		if s.Days == 0 || d.TempMin[i] < s.MinTemperature {
			s.MinTemperature = d.TempMin[i]
		}
		if s.Days == 0 || d.TempMax[i] > s.MaxTemperature {
			s.MaxTemperature = d.TempMax[i]
		}
		if i < len(d.WindMax) && d.WindMax[i] > s.MaxWindSpeed {
			s.MaxWindSpeed = d.WindMax[i]
		}
		if i < len(d.Precipitation) {
			s.TotalPrecipitation += d.Precipitation[i]
		}
		sum += d.TempMean[i]
		s.Days++
	}
	if s.Days > 0 {
		s.AvgTemperature = sum / float64(s.Days)
	}
	return s
}

// Open-Meteo API response types.

type currentResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		Precipitation float64 `json:"precipitation"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
}

type dailyResponse struct {
	Daily daily `json:"daily"`
}

type daily struct {
	Time          []string  `json:"time"`
	TempMax       []float64 `json:"temperature_2m_max"`
	TempMin       []float64 `json:"temperature_2m_min"`
	TempMean      []float64 `json:"temperature_2m_mean"`
	WindMax       []float64 `json:"wind_speed_10m_max"`
	Precipitation []float64 `json:"precipitation_sum"`
	WeatherCode   []int     `json:"weather_code"`
}

// check verifies the forecast series are aligned.
func (d daily) check() error {
	n := len(d.Time)
	if len(d.TempMax) != n || len(d.WindMax) != n || len(d.Precipitation) != n || len(d.WeatherCode) != n {
		return fmt.Errorf("open-meteo returned misaligned daily series")
	}
	return nil
}
