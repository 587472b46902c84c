package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mentionwatch/mentionwatch/internal/api"
	"github.com/mentionwatch/mentionwatch/internal/auth"
	"github.com/mentionwatch/mentionwatch/internal/config"
	"github.com/mentionwatch/mentionwatch/internal/database"
	"github.com/mentionwatch/mentionwatch/internal/ingestion"
	"github.com/mentionwatch/mentionwatch/internal/logging"
	"github.com/mentionwatch/mentionwatch/internal/metrics"
	"github.com/mentionwatch/mentionwatch/internal/models"
	"github.com/mentionwatch/mentionwatch/internal/server"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting mentionwatch")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		ruleRepo   ingestion.RuleRepository
		postRepo   ingestion.PostRepository
		cursorRepo ingestion.CursorStore
	)
	if cfg.Database.URL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.Database.URL
		dbCfg.MaxConnections = cfg.Database.MaxConnections

		logger.Info("connecting to database")
		db, err := database.Connect(ctx, dbCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("database connected")

		// Non-fatal to allow the app to start even if migrations fail
		if err := database.RunMigrations(db, cfg.Database.MigrationsDir, logger); err != nil {
			logger.Warn("failed to run migrations, continuing anyway", "error", err)
		}

		ruleRepo = database.NewPostgresRuleRepository(db)
		postRepo = database.NewPostgresPostRepository(db)
		cursorRepo = database.NewPostgresCursorRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, running with in-memory stores")
		ruleRepo = ingestion.NewMemoryRuleRepository()
		postRepo = ingestion.NewMemoryPostRepository()
		cursorRepo = ingestion.NewMemoryCursorStore()
	}

	// Connector registry. A missing credential does not block startup; the
	// connector reports the failure per run instead.
	registry := ingestion.NewRegistry()
	registry.Register(ingestion.NewTwitterConnector(cfg.Ingestion.TwitterBearerToken, logger))
	registry.Register(ingestion.NewNewsConnector(
		ingestion.NewsProvider(cfg.Ingestion.NewsProvider),
		cfg.Ingestion.NewsAPIKey,
		logger,
	))
	registry.Register(ingestion.NewRSSConnector(logger))

	extractor := ingestion.NewContentExtractor(ingestion.ExtractorOptions{
		Timeout: cfg.Ingestion.ExtractTimeout,
	}, logger)
	registry.Register(ingestion.NewScrapeConnector(models.PlatformLinkedIn, extractor, logger))
	registry.Register(ingestion.NewScrapeConnector(models.PlatformReddit, extractor, logger))

	// API-backed platforms also get a scrape pass behind the API, which keeps
	// them alive scrape-only when credentials are missing or revoked.
	registry.RegisterSupplement(ingestion.NewScrapeConnector(models.PlatformTwitter, extractor, logger))
	registry.RegisterSupplement(ingestion.NewScrapeConnector(models.PlatformNews, extractor, logger))
	defer registry.CloseAll()

	httpCollector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	ingestionCollector, err := metrics.NewIngestionCollector(httpCollector)
	if err != nil {
		logger.Error("failed to init ingestion metrics", "error", err)
		os.Exit(1)
	}

	dedup := ingestion.NewBoundedDedupStore(cfg.Ingestion.DedupCapacity)
	filters := ingestion.NewFilterChain(dedup, cfg.Ingestion.RecencyBoundaryYear, logger)

	orchestrator := ingestion.NewOrchestrator(
		registry,
		ingestion.NewQueryBuilder(),
		cursorRepo,
		filters,
		postRepo,
		ruleRepo,
		ingestionCollector,
		logging.ForComponent(logger, "ingestion"),
		ingestion.OrchestratorConfig{
			InterQueryDelay: cfg.Ingestion.InterQueryDelay,
			RetryPolicy:     ingestion.DefaultRetryPolicy(),
		},
	)

	// Background scheduler
	runner := ingestion.NewRunner(orchestrator, cfg.Ingestion.SchedulerInterval, logging.ForComponent(logger, "scheduler"))
	go runner.Run(ctx)

	// HTTP surface
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"mentionwatch","status":"ready","version":"0.1.0"}`))
	})

	mux.Handle("/metrics", httpCollector.Handler())

	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	api.SetupRoutes(mux, orchestrator, ruleRepo, postRepo, cursorRepo, authConfig, logging.ForComponent(logger, "api"))

	srv := server.New(cfg.Server, logger, httpCollector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	logger.Info("mentionwatch started", "port", cfg.Server.Port)

	<-ctx.Done()

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
