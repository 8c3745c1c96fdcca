package cache

import "time"

// TTL policy per data kind. Every write through the gateway carries one of these;
// nothing is cached without an expiry.
const (
	TTLCurrentWeather = 5 * time.Minute
	TTLForecast       = 30 * time.Minute
	TTLHistorical     = 2 * time.Hour
	TTLPreferences    = time.Hour
	TTLActiveAlerts   = 5 * time.Minute
	TTLPopularity     = 30 * 24 * time.Hour
	TTLDailyCounter   = 30 * 24 * time.Hour
	TTLHourlyCounter  = 7 * 24 * time.Hour
	TTLSubscriptions  = 30 * 24 * time.Hour
	TTLHealthProbe    = 10 * time.Second
	TTLUserActivity   = 30 * 24 * time.Hour
	TTLErrorCounter   = 30 * 24 * time.Hour
)

// Top-level key namespaces. No component owns a key range except by these prefixes.
const (
	PrefixWeather   = "weather"
	PrefixAlerts    = "alerts"
	PrefixAnalytics = "analytics"
	PrefixHealth    = "health"
)

// Namespaces lists the top-level prefixes in display order.
var Namespaces = []string{PrefixWeather, PrefixAlerts, PrefixAnalytics, PrefixHealth}
