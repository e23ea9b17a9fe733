package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/okian/streetwise/internal/adapters/http/api"
	"github.com/okian/streetwise/internal/adapters/http/auth"
	"github.com/okian/streetwise/internal/adapters/http/feed"
	"github.com/okian/streetwise/internal/adapters/http/swagger"
	"github.com/okian/streetwise/internal/adapters/repository"
	app "github.com/okian/streetwise/internal/app"
	"github.com/okian/streetwise/internal/config"
	"github.com/okian/streetwise/internal/domain/engine"
	"github.com/okian/streetwise/internal/domain/market"
	"github.com/okian/streetwise/internal/domain/scoregate"
	"github.com/okian/streetwise/pkg/logger"
	"github.com/okian/streetwise/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := loadDotEnv(".env"); err != nil {
		os.Stderr.WriteString("failed to read .env: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

// loadDotEnv loads the given files into the environment. Missing files are
// ignored; variables already set win.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(log)

	if err := a.svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, a.svc)

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("storage", cfg.StorageDriver),
			logger.Bool("tokens", a.tokens),
		)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.hub.Close()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := a.svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// application is the wired process, minus the listener.
type application struct {
	svc    *app.Service
	stores *repository.Stores
	hub    *feed.Hub
	srv    *http.Server
	tokens bool
}

func (a *application) close(log logger.Logger) {
	if err := a.stores.Close(); err != nil {
		log.Error(context.Background(), "closing storage failed", logger.Error(err))
	}
}

// build wires storage, the game service and the HTTP API from cfg.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	catalog := market.DefaultCatalog()
	if cfg.CatalogPath != "" {
		c, err := market.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		catalog = c
	}

	stores, err := repository.Open(ctx, cfg.StorageDriver, cfg.StorageDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.StorageDriver, err)
	}

	hub := feed.NewHub(feed.WithLogger(log.Named("feed")))
	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithEngine(engine.New(catalog)),
		app.WithStores(stores),
		app.WithPublisher(hub),
		app.WithWorkerCount(cfg.ArchiveWorkerCount),
		app.WithQueueSize(cfg.ArchiveQueueSize),
		app.WithCooldownSize(cfg.CooldownCacheSize),
		app.WithSessionTTL(cfg.SessionTTL()),
		app.WithJanitorSchedule(cfg.JanitorCron),
		app.WithGateOptions(
			scoregate.WithMinDuration(cfg.MinRun()),
			scoregate.WithCooldown(cfg.SubmitCooldown()),
			scoregate.WithScoreTolerance(cfg.ScoreTolerance),
			scoregate.WithScoreBand(cfg.MinScore, cfg.MaxScore),
			scoregate.WithHashLength(cfg.HashLength),
		),
	)

	opts := []api.Option{
		api.WithLogger(log.Named("api")),
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithSubmitRate(cfg.SubmitRatePerMinute),
		api.WithLiveFeed(hub),
	}
	withTokens := cfg.SessionSecret != ""
	if withTokens {
		issuer, err := auth.NewIssuer(cfg.SessionSecret, cfg.TokenTTL())
		if err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("failed to configure session tokens: %w", err)
		}
		opts = append(opts, api.WithTokens(issuer))
	} else {
		log.Warn(ctx, "session_secret not set; action requests are not authenticated")
	}

	router := mux.NewRouter()
	api.NewServer(svc, svc, opts...).Register(router)
	swagger.Register(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return &application{svc: svc, stores: stores, hub: hub, srv: srv, tokens: withTokens}, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics. GetStats refreshes
// the session and leaderboard gauges itself.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	stats := svc.GetStats(ctx)

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
