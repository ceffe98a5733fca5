package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httpapi "github.com/i474232898/climategpt-servers/internal/api/http"
	"github.com/i474232898/climategpt-servers/internal/classify"
	"github.com/i474232898/climategpt-servers/internal/config"
	"github.com/i474232898/climategpt-servers/internal/dataset"
	"github.com/i474232898/climategpt-servers/internal/forecast"
	"github.com/i474232898/climategpt-servers/internal/insight"
	"github.com/i474232898/climategpt-servers/internal/llm"
	"github.com/i474232898/climategpt-servers/internal/logging"
	"github.com/i474232898/climategpt-servers/internal/query"
	"github.com/i474232898/climategpt-servers/internal/querycheck"
	"github.com/i474232898/climategpt-servers/internal/scheduler"
	"github.com/i474232898/climategpt-servers/internal/sqlitedb"
	"github.com/i474232898/climategpt-servers/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	profile, err := dataset.Lookup(cfg.Dataset)
	if err != nil {
		logger.Fatal("unknown dataset", zap.Error(err))
	}

	db, err := sqlitedb.Open(cfg.DBPath, sqlitedb.Options{
		BusyTimeout:   cfg.DBBusyTimeout,
		QueryTimeout:  cfg.QueryTimeout,
		MaxRetries:    cfg.DBMaxRetries,
		MaxResultRows: cfg.MaxResultRows,
	}, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer db.Close()

	model := llm.New(cfg.LLM, logger)

	// Separate caches for classifications, results and insights.
	results := store.NewMemoryStore[*query.Response](cfg.CacheSize, cfg.CacheTTL)
	classifications := store.NewMemoryStore[*classify.Classification](cfg.CacheSize, cfg.CacheTTL)
	insights := store.NewMemoryStore[string](cfg.InsightCacheSize, time.Hour)

	var fc query.Forecaster
	if profile.Forecasting {
		fc = forecast.NewExecutor(db, forecast.Options{CleanOutliers: cfg.ForecastCleanOutliers}, logger)
	}

	proc := query.NewProcessor(query.Deps{
		Profile:    profile,
		Classifier: classify.New(model, profile, classifications, cfg.CacheTTL, logger),
		DB:         db,
		Insights:   insight.New(model, profile, insights, logger),
		Forecaster: fc,
		Cache:      results,
		Log:        logger,
	})

	// Scheduler that periodically drops expired cache entries.
	sched := scheduler.New(cfg.CacheSweep, map[string]scheduler.Sweeper{
		"results":         results,
		"classifications": classifications,
		"insights":        insights,
	}, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &httpapi.Server{
		Name:            profile.Server,
		Processor:       proc,
		Checker:         querycheck.Checker{MinLength: cfg.MinQueryLength, MaxLength: cfg.MaxQueryLength},
		DB:              db,
		Results:         results,
		Classifications: classifications,
		Insights:        insights,
		RateLimit:       cfg.RateLimit,
		Log:             logger,
	}
	if cfg.RelevanceCheck {
		srv.Relevance = model
	}

	app := httpapi.NewApp(profile.Server, cfg.QueryTimeout)
	httpapi.RegisterRoutes(app, srv)

	go func() {
		logger.Info("starting server", zap.String("dataset", profile.Name), zap.String("addr", cfg.Addr()))
		if err := app.Listen(cfg.Addr()); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}
