package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/mmpresence/internal/adapter/driven/mattermost"
	sqliteadapter "github.com/ericfisherdev/mmpresence/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/mmpresence/internal/adapter/driving/cdp"
	httphandler "github.com/ericfisherdev/mmpresence/internal/adapter/driving/http"
	"github.com/ericfisherdev/mmpresence/internal/application"
	"github.com/ericfisherdev/mmpresence/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capture API, the optional DevTools observer and the reassert scheduler",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	// 1. Load configuration (fail fast on invalid values).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"interval", cfg.Interval,
		"policy", cfg.Policy,
		"cdp_url", cfg.CDPURL,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	schemaVersion, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", "schema_version", schemaVersion)

	// 5. Wire adapters.
	store := sqliteadapter.NewSessionRepo(db)
	client := mattermost.NewClient(
		mattermost.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		mattermost.WithRateLimit(cfg.RateLimit),
		mattermost.WithLogger(logger),
	)

	// 6. Seed settings: stored values take priority over env/config values.
	settingsSvc := application.NewSettingsService(store, logger)
	settings, err := settingsSvc.Seed(ctx, cfg.SeedSettings())
	if err != nil {
		return err
	}
	logger.Info("settings resolved", "domain", settings.Domain, "desired_status", string(settings.DesiredStatus))

	// 7. Create services.
	captureSvc := application.NewCaptureService(store, logger)
	reassertSvc := application.NewReassertService(store, client, cfg.ReassertPolicy(), cfg.Interval, logger)

	var wg sync.WaitGroup

	// 8. Start the reassert scheduler.
	wg.Add(1)
	go func() {
		defer wg.Done()
		reassertSvc.Start(ctx)
	}()

	// 8b. Start the DevTools observer when configured.
	if cfg.CDPURL != "" {
		observer := cdp.NewObserver(cfg.CDPURL, cfg.CDPRescan, captureSvc, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			observer.Run(ctx)
		}()
	}

	// 9. Create HTTP handler and start the API server.
	apiHandler := httphandler.NewHandler(settingsSvc, captureSvc, reassertSvc, store, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// 10. Log startup complete.
	logger.Info("mmpresence started",
		"listen_addr", cfg.ListenAddr,
		"interval", cfg.Interval,
		"policy", cfg.Policy,
	)

	// 11. Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down")

	// 12. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	// 13. Wait for the scheduler and observer to drain.
	wg.Wait()

	logger.Info("shutdown complete")
	return nil
}
