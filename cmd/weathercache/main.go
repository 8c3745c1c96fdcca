package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	httpadapter "github.com/couchcryptid/weather-cache-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-cache-service/internal/adapter/kafka"
	"github.com/couchcryptid/weather-cache-service/internal/adapter/openmeteo"
	redisadapter "github.com/couchcryptid/weather-cache-service/internal/adapter/redis"
	"github.com/couchcryptid/weather-cache-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-cache-service/internal/alerts"
	"github.com/couchcryptid/weather-cache-service/internal/analytics"
	"github.com/couchcryptid/weather-cache-service/internal/cache"
	"github.com/couchcryptid/weather-cache-service/internal/config"
	"github.com/couchcryptid/weather-cache-service/internal/domain"
	"github.com/couchcryptid/weather-cache-service/internal/health"
	"github.com/couchcryptid/weather-cache-service/internal/observability"
	"github.com/couchcryptid/weather-cache-service/internal/scheduler"
	"github.com/couchcryptid/weather-cache-service/internal/weather"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const (
	notifyTimeout  = 5 * time.Second
	sweepTimeout   = 30 * time.Second
	cleanupTimeout = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		logger.Error("failed to open alert store", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	kv := redisadapter.NewStore(cfg)
	gw := cache.NewGateway(kv, logger, metrics)

	// Notifications are feature-flagged via NOTIFICATIONS_ENABLED.
	var (
		dispatcher domain.AlertDispatcher
		producer   *kafkaadapter.Dispatcher
	)
	if cfg.NotificationsEnabled {
		producer = kafkaadapter.NewDispatcher(cfg, logger)
		dispatcher = producer
		logger.Info("alert notifications enabled", "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("alert notifications disabled")
	}

	engine := alerts.NewEngine(alerts.Deps{
		Store:      db,
		Locations:  db,
		Dispatcher: dispatcher,
		Cache:      gw,
		Clock:      clock,
		Logger:     logger,
		Metrics:    metrics,
	}, cfg.AlertRetention, notifyTimeout)

	source := weather.NewBreakerSource("open-meteo", openmeteo.NewClient(cfg, logger), weather.BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}, logger)
	tracker := analytics.NewTracker(gw, clock, logger, metrics, cfg.TrackingTimeout, cfg.TrackingMaxInFlight)
	weatherSvc := weather.NewService(gw, source, db, engine, tracker, logger)
	probe := health.NewProbe(kv, "redis", clock, logger, metrics)

	sched := scheduler.New(logger, metrics)
	if err := registerJobs(sched, cfg, engine, probe); err != nil {
		logger.Error("failed to schedule jobs", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Weather:   weatherSvc,
		Alerts:    engine,
		Analytics: tracker,
		Health:    probe,
		Cache:     gw,
		Ready:     readiness{probe, db},
		Clock:     clock,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	sched.Start()

	<-gctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := g.Wait(); err != nil {
		logger.Error("http server error", "error", err)
	}
	sched.Stop()
	if err := engine.Close(shutdownCtx); err != nil {
		logger.Error("pending notifications abandoned", "error", err)
	}
	tracker.Flush()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka dispatcher close error", "error", err)
		}
	}
	if err := kv.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}
	if err := db.Close(); err != nil {
		logger.Error("sqlite close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func registerJobs(s *scheduler.Scheduler, cfg *config.Config, engine *alerts.Engine, probe *health.Probe) error {
	if err := s.Every("expire-alerts", cfg.SweepInterval, sweepTimeout, func(ctx context.Context) error {
		_, err := engine.SweepExpired(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := s.Daily("cleanup-alerts", cfg.CleanupAt, cleanupTimeout, func(ctx context.Context) error {
		_, err := engine.CleanupOldAlerts(ctx)
		return err
	}); err != nil {
		return err
	}
	return s.Every("store-probe", cfg.ProbeInterval, cfg.ProbeInterval, func(ctx context.Context) error {
		if r := probe.CheckHealth(ctx); !r.Up() {
			return errors.New(r.Error)
		}
		return nil
	})
}

// readiness reports ready only when every dependency does.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
