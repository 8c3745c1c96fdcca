package domain

import (
	"fmt"
	"strings"
	"time"
)

// Threshold values for automatic alert generation.
const (
	HighTempThreshold         = 40.0
	HighTempCriticalThreshold = 45.0
	LowTempThreshold          = -10.0
	LowTempCriticalThreshold  = -20.0
	HighWindThreshold         = 50.0
	HighWindCriticalThreshold = 75.0
)

// Default validity windows for generated alerts.
var validity = map[AlertType]time.Duration{
	AlertHighTemperature: 6 * time.Hour,
	AlertLowTemperature:  6 * time.Hour,
	AlertHighWind:        4 * time.Hour,
	AlertThunderstorm:    3 * time.Hour,
	AlertHeavySnow:       6 * time.Hour,
}

// ValidityWindow returns the default lifetime of a generated alert of type t.
func ValidityWindow(t AlertType) time.Duration {
	if d, ok := validity[t]; ok {
		return d
	}
	return 3 * time.Hour
}

// AlertDraft is a generated alert before it has an id, times, or status.
type AlertDraft struct {
	Type        AlertType
	Severity    Severity
	Title       string
	Description string
	Validity    time.Duration
}

// EvaluateThresholds applies the automatic alert rule table to a reading.
// Rules are independent; the result is ordered temperature, wind, condition.
func EvaluateThresholds(r Reading) []AlertDraft {
	var drafts []AlertDraft

	switch {
	case r.Temperature > HighTempThreshold:
		sev := SeverityHigh
		if r.Temperature > HighTempCriticalThreshold {
			sev = SeverityCritical
		}
		drafts = append(drafts, draft(AlertHighTemperature, sev,
			"Extreme heat warning",
			fmt.Sprintf("Temperature of %.1f°C exceeds %.0f°C.", r.Temperature, HighTempThreshold)))
	case r.Temperature < LowTempThreshold:
		sev := SeverityHigh
		if r.Temperature < LowTempCriticalThreshold {
			sev = SeverityCritical
		}
		drafts = append(drafts, draft(AlertLowTemperature, sev,
			"Extreme cold warning",
			fmt.Sprintf("Temperature of %.1f°C is below %.0f°C.", r.Temperature, LowTempThreshold)))
	}

	if r.WindSpeed > HighWindThreshold {
		sev := SeverityHigh
		if r.WindSpeed > HighWindCriticalThreshold {
			sev = SeverityCritical
		}
		drafts = append(drafts, draft(AlertHighWind, sev,
			"High wind warning",
			fmt.Sprintf("Wind speed of %.1f km/h exceeds %.0f km/h.", r.WindSpeed, HighWindThreshold)))
	}

	cond := strings.ToLower(r.Condition)
	if strings.Contains(cond, "thunderstorm") {
		drafts = append(drafts, draft(AlertThunderstorm, SeverityHigh,
			"Thunderstorm warning",
			fmt.Sprintf("Thunderstorm conditions reported: %s.", r.Condition)))
	}
	if strings.Contains(cond, "snow") {
		drafts = append(drafts, draft(AlertHeavySnow, SeverityMedium,
			"Snow advisory",
			fmt.Sprintf("Snow conditions reported: %s.", r.Condition)))
	}

	return drafts
}

func draft(t AlertType, sev Severity, title, desc string) AlertDraft {
	return AlertDraft{
		Type:        t,
		Severity:    sev,
		Title:       title,
		Description: desc,
		Validity:    ValidityWindow(t),
	}
}
