package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/precip-forecast/internal/adapter/httpapi"
	kafkaadapter "github.com/couchcryptid/precip-forecast/internal/adapter/kafka"
	modeladapter "github.com/couchcryptid/precip-forecast/internal/adapter/model"
	"github.com/couchcryptid/precip-forecast/internal/aggregate"
	"github.com/couchcryptid/precip-forecast/internal/blend"
	"github.com/couchcryptid/precip-forecast/internal/climatology"
	"github.com/couchcryptid/precip-forecast/internal/config"
	"github.com/couchcryptid/precip-forecast/internal/estimator"
	"github.com/couchcryptid/precip-forecast/internal/forecast"
	"github.com/couchcryptid/precip-forecast/internal/ingest"
	"github.com/couchcryptid/precip-forecast/internal/normalcache"
	"github.com/couchcryptid/precip-forecast/internal/observability"
	"github.com/couchcryptid/precip-forecast/internal/scheduler"
	"github.com/couchcryptid/precip-forecast/internal/store"
)

const ingestBatchSize = 500

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	observations := store.NewMemory(cfg.ObservationMaxAge)
	cache := normalcache.New(cfg.NormalsCacheSize)
	computer := climatology.New(climatology.Params{
		ReferenceYears:      cfg.ReferenceYears,
		MinSamplesPerPeriod: cfg.MinSamplesPerPeriod,
		DayWindow:           cfg.DayWindow,
		WetDayThresholdMM:   cfg.RainThresholdMM,
	})

	// The trained regressor is feature-flagged via MODEL_ENDPOINT; without it
	// the method reports unavailable and the blend renormalizes around it.
	var model estimator.Model
	if cfg.ModelEndpoint != "" {
		model = modeladapter.NewClient(cfg.ModelEndpoint, cfg.ModelTimeout, logger, metrics)
		logger.Info("trained regressor enabled", "endpoint", cfg.ModelEndpoint)
	} else {
		logger.Info("trained regressor disabled")
	}

	persistence := estimator.NewPersistence()
	persistence.Ceiling = cfg.PersistenceCeiling
	estimators := []estimator.Estimator{
		persistence,
		estimator.NewAnalog(cfg.AnalogK),
		estimator.NewClimatology(),
		estimator.NewRegressor(model),
	}

	engine := forecast.NewEngine(
		observations,
		cache,
		computer,
		estimators,
		blend.New(blend.DefaultTable(), cfg.RainThresholdMM),
		aggregate.New(aggregate.DefaultParams()),
		logger,
		metrics,
		forecast.Options{
			MethodTimeout:            cfg.ModelTimeout,
			ConfidenceHighCutoff:     cfg.ConfidenceHighCutoff,
			ConfidenceModerateCutoff: cfg.ConfidenceModerateCutoff,
		},
	)

	reader := kafkaadapter.NewReader(cfg, logger)
	consumer := ingest.New(reader, observations, cache, logger, metrics, ingestBatchSize)

	refresh := scheduler.New(observations, engine, cfg.NormalsRefreshInterval, logger)

	srv := httpapi.NewServer(cfg.HTTPAddr, engine, consumer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := consumer.Run(ctx); err != nil {
			logger.Error("ingest error", "error", err)
		}
	}()

	if err := refresh.Start(); err != nil {
		logger.Error("scheduler start error", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	refresh.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}

	logger.Info("shutdown complete")
}
