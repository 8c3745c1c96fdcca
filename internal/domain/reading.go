package domain

import "time"

// Location is a place weather is tracked for.
type Location struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Reading is a flat weather observation or a single forecast day.
type Reading struct {
	LocationID    string    `json:"location_id"`
	Temperature   float64   `json:"temperature_c"`
	Humidity      float64   `json:"humidity_pct,omitempty"`
	WindSpeed     float64   `json:"wind_speed_kmh"`
	Precipitation float64   `json:"precipitation_mm,omitempty"`
	Condition     string    `json:"condition"`
	ObservedAt    time.Time `json:"observed_at"`
}

// HistoricalSummary aggregates daily observations over a date range.
type HistoricalSummary struct {
	LocationID         string    `json:"location_id"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	Days               int       `json:"days"`
	AvgTemperature     float64   `json:"avg_temperature_c"`
	MinTemperature     float64   `json:"min_temperature_c"`
	MaxTemperature     float64   `json:"max_temperature_c"`
	MaxWindSpeed       float64   `json:"max_wind_speed_kmh"`
	TotalPrecipitation float64   `json:"total_precipitation_mm"`
}

// Preferences are per-user display and alert defaults.
type Preferences struct {
	Units           string      `json:"units,omitempty"`
	DefaultLocation string      `json:"default_location,omitempty"`
	AlertTypes      []AlertType `json:"alert_types,omitempty"`
}
