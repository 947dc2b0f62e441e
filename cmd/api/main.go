// Command api is the Matchday lifecycle server: referee match control, the
// tournament sweep, notification dispatch and live scoreboards.
//
// Usage:
//
//	matchday-api
//	STORE_DRIVER=sqlite SQLITE_PATH=./matchday.db matchday-api
//	API_PORT=8080 SWEEP_CRON="*/5 * * * *" matchday-api

// @title Matchday Lifecycle API
// @version 1.0.0
// @description Tournament and match lifecycle service: referee match control, event ledger, public scoreboards and live feeds.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @contact.name Matchday
// @license.name MIT
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/api"
	"github.com/albapepper/matchday/internal/api/auth"
	"github.com/albapepper/matchday/internal/api/handler"
	"github.com/albapepper/matchday/internal/bus"
	"github.com/albapepper/matchday/internal/cache"
	"github.com/albapepper/matchday/internal/config"
	"github.com/albapepper/matchday/internal/ledger"
	"github.com/albapepper/matchday/internal/listener"
	"github.com/albapepper/matchday/internal/live"
	"github.com/albapepper/matchday/internal/maintenance"
	"github.com/albapepper/matchday/internal/match"
	"github.com/albapepper/matchday/internal/notifications"
	"github.com/albapepper/matchday/internal/storage/driver"
	"github.com/albapepper/matchday/internal/tournament"

	_ "github.com/albapepper/matchday/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Open the store
	store, err := driver.Open(ctx, cfg, true, logger)
	if err != nil {
		logger.Error("Failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Scoring rules
	rules := ledger.DefaultRules()
	if cfg.ScoringRulesFile != "" {
		rules, err = ledger.LoadRules(cfg.ScoringRulesFile)
		if err != nil {
			logger.Error("Failed to load scoring rules", "file", cfg.ScoringRulesFile, "error", err)
			os.Exit(1)
		}
		logger.Info("Scoring rules loaded", "file", cfg.ScoringRulesFile)
	}

	clock := clockwork.NewRealClock()

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled, clock)
	go appCache.RunEviction(ctx)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled, "ttl", cfg.CacheTTL)

	// Live scoreboard hub
	hub := live.NewHub(cfg.CORSAllowOrigins, logger)
	go hub.Run(ctx)

	// Notification pipeline
	renderer := notifications.NewRenderer(cfg.NotifyLocale, cfg.PublicBaseURL)
	dispatcher := notifications.NewDispatcher(store, renderer, cfg.NotifyLocation(), clock, logger)

	// Cache eviction and the live feed run inline; the outbox insert and the
	// stream publish go through a queue so referee requests never wait on them.
	outbound := bus.Fanout{dispatcher}
	var deliverer notifications.Deliverer = notifications.NewLogDeliverer(logger)

	// Optional event stream
	var stream *bus.JetStream
	if cfg.StreamEnabled() {
		jsCfg := bus.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		jsCfg.StreamName = cfg.NATSStream
		jsCfg.SubjectPrefix = cfg.NATSSubjectPrefix
		stream, err = bus.NewJetStream(ctx, jsCfg, logger)
		if err != nil {
			logger.Error("Failed to connect event stream", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer stream.Close()
		outbound = append(outbound, stream)
		deliverer = notifications.NewStreamDeliverer(stream)
		logger.Info("Event stream connected", "stream", jsCfg.StreamName, "prefix", jsCfg.SubjectPrefix)
	} else {
		logger.Info("Event stream disabled (no NATS_URL); notifications are logged")
	}

	queue := bus.NewQueue(outbound, bus.DefaultQueueSize, logger)
	go queue.Run(ctx)
	publishers := bus.Fanout{appCache, hub, queue}

	// Lifecycle components
	manager := match.NewManager(store, ledger.New(rules), publishers, clock, logger)
	sweeper := tournament.NewSweeper(store, dispatcher, publishers, cfg.FanoutConcurrency, logger)

	// Tournament sweep: crontab when configured, fixed interval otherwise
	if cfg.SweepCron != "" {
		sched, err := gocron.NewScheduler()
		if err != nil {
			logger.Error("Failed to create scheduler", "error", err)
			os.Exit(1)
		}
		if _, err := tournament.ScheduleCron(ctx, sched, cfg.SweepCron, sweeper, clock); err != nil {
			logger.Error("Invalid SWEEP_CRON", "expr", cfg.SweepCron, "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer func() {
			if err := sched.Shutdown(); err != nil {
				logger.Warn("Scheduler shutdown error", "error", err)
			}
		}()
		logger.Info("Tournament sweep scheduled", "cron", cfg.SweepCron)
		sweeper.Tick(ctx, clock.Now())
	} else {
		go tournament.RunTicker(ctx, sweeper, clock, cfg.SweepInterval, logger)
	}

	// Notification dispatch worker
	go notifications.StartWorker(ctx, store, deliverer, clock, notifications.WorkerConfig{
		Interval:  cfg.DispatchInterval,
		BatchSize: cfg.DispatchBatchSize,
	}, logger)

	// Maintenance tickers (outbox purge, score audit, fixtures watch)
	maint := maintenance.DefaultConfig()
	maint.PurgeInterval = cfg.PurgeInterval
	maint.Retention = cfg.NotificationRetention
	maint.AuditInterval = cfg.ScoreAuditInterval
	go maintenance.Start(ctx, store, manager, clock, maint, logger)

	// LISTEN/NOTIFY consumer so fixtures start tournaments without waiting for a tick
	if cfg.StoreDriver == config.DriverPostgres {
		go listener.Start(ctx, cfg.DatabaseURL, sweeper, clock, logger)
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; referee and admin endpoints reject every request")
	}
	verifier := auth.NewVerifier(cfg.JWTSecret)

	// Create router
	router := api.NewRouter(handler.Deps{
		Store:     store,
		Matches:   manager,
		Scheduler: sweeper,
		Cache:     appCache,
		Hub:       hub,
		Config:    cfg,
		Clock:     clock,
		Logger:    logger,
	}, verifier, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Matchday API",
			"addr", addr,
			"environment", cfg.Environment,
			"store", cfg.StoreDriver,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	sweeper.Wait()
	queue.Wait()
	logger.Info("Server stopped")
}
