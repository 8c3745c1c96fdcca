package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Key-value store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration

	// Alert and location store.
	SQLitePath string

	// Notification dispatch.
	KafkaBrokers         []string
	KafkaAlertTopic      string
	NotificationsEnabled bool

	// Weather source.
	WeatherBaseURL    string
	WeatherArchiveURL string
	WeatherTimeout    time.Duration

	// Scheduled work.
	SweepInterval  time.Duration
	CleanupAt      string
	AlertRetention time.Duration
	ProbeInterval  time.Duration

	// Fire-and-forget budgets.
	TrackingTimeout     time.Duration
	TrackingMaxInFlight int
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first if present; real
// environment variables take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	redisDB, err := parseInt("REDIS_DB", "0", 0)
	if err != nil {
		return nil, err
	}
	maxInFlight, err := parseInt("TRACKING_MAX_INFLIGHT", "256", 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: sharedcfg.EnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		SQLitePath: sharedcfg.EnvOrDefault("SQLITE_PATH", "data/weather.db"),

		KafkaBrokers:         sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic:      sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "weather-alert-notifications"),
		NotificationsEnabled: sharedcfg.EnvOrDefault("NOTIFICATIONS_ENABLED", "true") == "true",

		WeatherBaseURL:    sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.open-meteo.com/v1"),
		WeatherArchiveURL: sharedcfg.EnvOrDefault("WEATHER_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1"),

		CleanupAt:           sharedcfg.EnvOrDefault("CLEANUP_AT", "03:00"),
		TrackingMaxInFlight: maxInFlight,
	}

	for _, d := range []struct {
		key, def string
		dst      *time.Duration
	}{
		{"REDIS_TIMEOUT", "500ms", &cfg.RedisTimeout},
		{"WEATHER_TIMEOUT", "5s", &cfg.WeatherTimeout},
		{"SWEEP_INTERVAL", "5m", &cfg.SweepInterval},
		{"ALERT_RETENTION", "720h", &cfg.AlertRetention},
		{"PROBE_INTERVAL", "30s", &cfg.ProbeInterval},
		{"TRACKING_TIMEOUT", "250ms", &cfg.TrackingTimeout},
	} {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if cfg.NotificationsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when NOTIFICATIONS_ENABLED is true")
		}
		if cfg.KafkaAlertTopic == "" {
			return nil, errors.New("KAFKA_ALERT_TOPIC is required when NOTIFICATIONS_ENABLED is true")
		}
	}
	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is required")
	}
	if cfg.SQLitePath == "" {
		return nil, errors.New("SQLITE_PATH is required")
	}
	if _, err := time.Parse("15:04", cfg.CleanupAt); err != nil {
		return nil, fmt.Errorf("invalid CLEANUP_AT %q: want HH:MM", cfg.CleanupAt)
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, s)
	}
	return d, nil
}

func parseInt(key, def string, minimum int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s %q: must be an integer >= %d", key, s, minimum)
	}
	return n, nil
}
