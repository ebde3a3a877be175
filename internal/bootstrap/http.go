package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VihangaMunasinghe/ares-sub001/config"
	httpx "github.com/VihangaMunasinghe/ares-sub001/internal/http"
	"github.com/VihangaMunasinghe/ares-sub001/internal/service"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
	// ErrCh receives the listener error if the server fails to serve. Optional.
	ErrCh chan<- error
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := BuildHTTPHandler(appCfg, cfg.Services, cfg.DB, logger)
	return startServer(serverOptions{
		logger:  logger,
		handler: handler,
		http:    appCfg.HTTP,
		errCh:   cfg.ErrCh,
	})
}

// BuildHTTPHandler assembles the API router for the given services.
func BuildHTTPHandler(
	appCfg *config.AppConfig,
	services ServiceContainer,
	db *sql.DB,
	logger *slog.Logger,
) http.Handler {
	router := httpx.RouterServices{
		Jobs:         services.Jobs,
		Analysis:     services.Analysis,
		Readiness:    readinessChecks(db, services),
		MaxBodyBytes: appCfg.HTTP.MaxBodyBytes,
		WatchLimit:   appCfg.HTTP.WatchMaxWait,
		Logger:       logger,
	}
	if appCfg.Observability.Metrics.Enabled && services.Observability.Registry != nil {
		router.Metrics = promhttp.HandlerFor(services.Observability.Registry, promhttp.HandlerOpts{})
		router.MetricsPath = appCfg.Observability.Metrics.Path
	}
	return httpx.NewRouter(router)
}

func readinessChecks(db *sql.DB, services ServiceContainer) map[string]httpx.HealthCheck {
	checks := make(map[string]httpx.HealthCheck, 2)
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if services.Cache != nil {
		checks["redis"] = services.Cache.Health
	}
	return checks
}

type serverOptions struct {
	logger  *slog.Logger
	handler http.Handler
	http    config.HTTPConfig
	errCh   chan<- error
}

func startServer(opts serverOptions) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := opts.http.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           opts.handler,
		ReadTimeout:       opts.http.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      opts.http.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		opts.logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			opts.logger.Error("HTTP server failed", "error", err)
			if opts.errCh != nil {
				select {
				case opts.errCh <- fmt.Errorf("http server: %w", err):
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context    context.Context
	Server     *http.Server
	JobService *service.JobService
	Logger     *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Release long polls first or Shutdown waits for them.
	if cfg.JobService != nil {
		cfg.JobService.StopAllListeners()
	}

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}
