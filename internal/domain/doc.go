// Package domain models weather readings, weather alerts, and the collaborators
// the cache, alert, and analytics components depend on.
//
// # Alert Lifecycle
//
// Every alert starts ACTIVE. From there it can move to exactly one terminal state:
//
//	ACTIVE --(now > expiresAt, sweep)--> EXPIRED
//	ACTIVE --(operator cancel)---------> CANCELLED
//
// EXPIRED and CANCELLED accept no further transitions. [CanTransition] encodes
// the table and [ErrInvalidTransition] is reported for everything else.
//
// # Automatic Alerts
//
// [EvaluateThresholds] turns a single [Reading] into zero or more [AlertDraft]
// values using a fixed rule table. Rules are independent, so one reading can
// fire several alerts:
//
//	temperature > 40°C           HIGH_TEMPERATURE  CRITICAL above 45, else HIGH
//	temperature < -10°C          LOW_TEMPERATURE   CRITICAL below -20, else HIGH
//	wind speed > 50 km/h         HIGH_WIND         CRITICAL above 75, else HIGH
//	condition has "thunderstorm" THUNDERSTORM      HIGH
//	condition has "snow"         HEAVY_SNOW        MEDIUM
//
// Each draft carries a validity window (3–6 hours depending on the type) that
// becomes the alert's expiresAt relative to its creation time.
//
// # Units
//
// Temperatures are degrees Celsius, wind speed is km/h, precipitation is mm.
// All timestamps are UTC.
//
// # Error Taxonomy
//
// Store failures ([ErrStoreUnavailable]) are absorbed by callers and turned into
// degraded behavior. Validation ([ErrValidation]) and state machine
// ([ErrInvalidTransition]) failures are surfaced. Weather source failures
// ([ErrUpstreamUnavailable]) are surfaced because there is no value to serve.
package domain
