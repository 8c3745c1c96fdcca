package domain

import (
	"strings"
	"time"
)

// AlertType classifies a weather alert. The built-in types are produced by
// threshold evaluation; operators and external feeds may supply any other value.
type AlertType string

const (
	AlertHighTemperature AlertType = "HIGH_TEMPERATURE"
	AlertLowTemperature  AlertType = "LOW_TEMPERATURE"
	AlertHighWind        AlertType = "HIGH_WIND"
	AlertThunderstorm    AlertType = "THUNDERSTORM"
	AlertHeavySnow       AlertType = "HEAVY_SNOW"
)

// Severity is the four-level alert severity scale.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity normalizes s and reports whether it names a known severity.
func ParseSeverity(s string) (Severity, bool) {
	switch sev := Severity(strings.ToUpper(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, true
	default:
		return "", false
	}
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	StatusActive    AlertStatus = "ACTIVE"
	StatusExpired   AlertStatus = "EXPIRED"
	StatusCancelled AlertStatus = "CANCELLED"
)

// ParseStatus normalizes s and reports whether it names a known status.
func ParseStatus(s string) (AlertStatus, bool) {
	switch st := AlertStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusActive, StatusExpired, StatusCancelled:
		return st, true
	default:
		return "", false
	}
}

// Terminal reports whether no transition may leave s.
func (s AlertStatus) Terminal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// CanTransition reports whether an alert may move from one status to another.
// Only ACTIVE alerts move, and only to EXPIRED or CANCELLED.
func CanTransition(from, to AlertStatus) bool {
	if from != StatusActive {
		return false
	}
	return to == StatusExpired || to == StatusCancelled
}

// DataSourceAutomatic marks alerts synthesized from threshold evaluation.
const DataSourceAutomatic = "AUTOMATIC"

// Alert is a weather alert of record.
type Alert struct {
	ID              string      `json:"id"`
	LocationID      string      `json:"location_id"`
	Type            AlertType   `json:"alert_type"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Severity        Severity    `json:"severity"`
	AlertTime       time.Time   `json:"alert_time"`
	ExpiresAt       time.Time   `json:"expires_at,omitempty"`
	Status          AlertStatus `json:"status"`
	DataSource      string      `json:"data_source,omitempty"`
	ExternalAlertID string      `json:"external_alert_id,omitempty"`
	CancelReason    string      `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// HasExpiry reports whether the alert carries an expiry time.
func (a Alert) HasExpiry() bool { return !a.ExpiresAt.IsZero() }

// AlertRef identifies an alert touched by a bulk store operation.
type AlertRef struct {
	ID         string
	LocationID string
}

// NewAlert is the input for creating an alert.
type NewAlert struct {
	LocationID      string    `json:"location_id" validate:"required"`
	Type            AlertType `json:"alert_type" validate:"required"`
	Title           string    `json:"title" validate:"required,max=200"`
	Description     string    `json:"description" validate:"max=4000"`
	Severity        Severity  `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	AlertTime       time.Time `json:"alert_time"`
	ExpiresAt       time.Time `json:"expires_at"`
	DataSource      string    `json:"data_source"`
	ExternalAlertID string    `json:"external_alert_id"`
}

// Subscription records which alert types a user wants for a location.
type Subscription struct {
	UserID       string      `json:"user_id"`
	LocationID   string      `json:"location_id"`
	AlertTypes   []AlertType `json:"alert_types"`
	SubscribedAt time.Time   `json:"subscribed_at"`
}

// Wants reports whether the subscription covers t. An empty type list covers everything.
func (s Subscription) Wants(t AlertType) bool {
	if len(s.AlertTypes) == 0 {
		return true
	}
	for _, want := range s.AlertTypes {
		if want == t {
			return true
		}
	}
	return false
}

// NotificationPayload is handed to the dispatcher when an alert is created.
type NotificationPayload struct {
	AlertID     string    `json:"alert_id"`
	LocationID  string    `json:"location_id"`
	AlertType   AlertType `json:"alert_type"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationFor builds the dispatcher payload for a freshly created alert.
func NotificationFor(a Alert) NotificationPayload {
	return NotificationPayload{
		AlertID:     a.ID,
		LocationID:  a.LocationID,
		AlertType:   a.Type,
		Severity:    a.Severity,
		Title:       a.Title,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
	}
}
