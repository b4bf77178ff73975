package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"snsm/anomaly"
	"snsm/api"
	"snsm/blocklist"
	"snsm/config"
	"snsm/core"
	"snsm/notify"
	"snsm/scoring"
	"snsm/storage"

	"go.uber.org/zap"
)

// App represents the SNSM backend with all its components.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	SQLite *storage.SQLite
	Cache  *core.RedisCache

	// Scoring pipeline
	Aggregator *scoring.Aggregator
	Detector   *anomaly.Detector
	Trigger    *scoring.Trigger
	Blocklist  *blocklist.Manager

	// Services
	APIServer *api.API

	// Lifecycle
	serviceWg  *sync.WaitGroup
	shutdownCh chan struct{}
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{
		serviceWg:  &sync.WaitGroup{},
		shutdownCh: make(chan struct{}),
	}

	// Initialize logger
	logger, sugar, level, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("SNSM backend starting...")

	// Load configuration
	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg
	ApplyLogLevel(level, cfg, sugar)

	// Pre-flight checks
	sugar.Info("Running pre-flight checks...")
	if err := EnsureDataDirectories(cfg, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	// Initialize storage
	sqlite, err := storage.NewSQLite(cfg.Storage.SQLitePath, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	app.SQLite = sqlite

	// Redis is optional; the API falls back to direct storage reads when
	// the cache is absent.
	if cfg.Redis.Enabled {
		cache := core.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, 10, sugar)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := cache.Ping(pingCtx); err != nil {
			sugar.Warnw("Redis unreachable, continuing without cache",
				"addr", cfg.Redis.Addr, "error", err)
		} else {
			app.Cache = cache
			sugar.Infow("Redis cache connected", "addr", cfg.Redis.Addr)
		}
		cancel()
	}

	// Scoring pipeline
	app.Aggregator = scoring.NewAggregator(sqlite, sugar)
	app.Detector = anomaly.NewDetector(sqlite, &anomaly.Config{
		Alpha:          cfg.Anomaly.EWMAAlpha,
		ZThreshold:     cfg.Anomaly.ZThreshold,
		RateMultiplier: cfg.Anomaly.RateMultiplier,
		RateMinSamples: cfg.Anomaly.RateMinSamples,
		Logger:         sugar,
	})

	notifier := notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout, sugar)
	var blockNotifier blocklist.Notifier
	if notifier != nil {
		blockNotifier = notifier
		sugar.Infow("Block webhook notifications enabled", "url", cfg.Notify.WebhookURL)
	}
	app.Blocklist = blocklist.NewManager(sqlite, app.Cache, blockNotifier, cfg.Scoring.BlockTTL, sugar)

	if cfg.Scoring.AutoBlockEnabled {
		app.Trigger = scoring.NewTrigger(app.Blocklist, cfg.Scoring.AutoBlockThreshold, sugar)
		sugar.Infow("Auto-blocking enabled", "threshold", cfg.Scoring.AutoBlockThreshold)
	} else {
		sugar.Info("Auto-blocking disabled by configuration")
	}

	return app, nil
}

// Start starts the API server and background workers.
func (a *App) Start(ctx context.Context) error {
	a.APIServer = api.NewAPI(api.Dependencies{
		AlertStorage:       a.SQLite,
		FlowStorage:        a.SQLite,
		AgentStorage:       a.SQLite,
		ThreatScoreStorage: a.SQLite,
		IncidentStorage:    a.SQLite,
		Aggregator:         a.Aggregator,
		Detector:           a.Detector,
		Trigger:            a.Trigger,
		Blocklist:          a.Blocklist,
		Cache:              a.Cache,
	}, a.Config, a.Sugar)

	a.startAgentSweeper()

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		addr := fmt.Sprintf("%s:%d", a.Config.API.Host, a.Config.API.Port)
		a.Sugar.Infof("API server started on %s", addr)
		if err := a.APIServer.Start(addr); err != nil && err.Error() != "http: Server closed" {
			a.Sugar.Errorf("API server error: %v", err)
		}
	}()

	return nil
}

// startAgentSweeper periodically marks agents offline when their heartbeats
// go stale.
func (a *App) startAgentSweeper() {
	interval := a.Config.Agents.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	offlineAfter := a.Config.Agents.OfflineAfter
	if offlineAfter <= 0 {
		offlineAfter = 2 * time.Minute
	}

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-a.shutdownCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				n, err := a.SQLite.MarkAgentsOffline(ctx, time.Now().UTC().Add(-offlineAfter))
				cancel()
				if err != nil {
					a.Sugar.Errorw("Agent offline sweep failed", "error", err)
				} else if n > 0 {
					a.Sugar.Infow("Marked stale agents offline", "count", n)
				}
			}
		}
	}()
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	close(a.shutdownCh)

	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
	}

	// Wait for service goroutines to wind down
	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.Sugar.Info("All service goroutines stopped")
	case <-time.After(15 * time.Second):
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Sugar.Errorw("Failed to close Redis connection", "error", err)
		}
	}
	if a.SQLite != nil {
		a.SQLite.Close()
	}

	a.Sugar.Info("Shutdown complete")
	a.Logger.Sync()
}
