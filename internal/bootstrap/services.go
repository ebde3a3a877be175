package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/VihangaMunasinghe/ares-sub001/config"
	"github.com/VihangaMunasinghe/ares-sub001/internal/adapters/reaper"
	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/data"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/analytics"
	"github.com/VihangaMunasinghe/ares-sub001/internal/observability/metrics"
	"github.com/VihangaMunasinghe/ares-sub001/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          *service.JobService
	Analysis      *service.AnalysisService
	JobRepo       core.JobRepository
	Missions      core.MissionRepository
	Cache         core.CacheRepository
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder
	Config   config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

func buildObservability(cfg config.ObservabilityMetricsConfig) ObservabilityContainer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return ObservabilityContainer{
		Registry: reg,
		Metrics:  metrics.New(reg),
		Config:   cfg,
	}
}

func newAnalyzer(cfg config.AnalyticsConfig) (*analytics.Analyzer, error) {
	analyzer, err := analytics.NewAnalyzer(analytics.AnalyzerOptions{
		ChangeTolerance:  cfg.ChangeTolerance,
		SummaryTolerance: cfg.SummaryTolerance,
		Metrics:          cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build analyzer: %w", err)
	}
	return analyzer, nil
}

// NewServices wires repositories and services from the shared infrastructure. A nil Redis
// client or a disabled cache leaves analysis uncached.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies and config are required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	obs := buildObservability(cfg.Observability.Metrics)

	analyzer, err := newAnalyzer(cfg.Analytics)
	if err != nil {
		return ServiceContainer{}, err
	}

	var cache core.CacheRepository
	if deps.RedisClient != nil && cfg.Cache.Enabled {
		cache = data.NewRedisCacheRepo(deps.RedisClient, cfg.Cache.KeyPrefix)
	}

	analysis, err := service.NewAnalysisService(service.AnalysisServiceOptions{
		Analyzer: analyzer,
		Cache:    cache,
		CacheTTL: cfg.Cache.AnalysisTTL,
		Metrics:  obs.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build analysis service: %w", err)
	}

	jobRepo := data.NewJobRepo(deps.DB, data.RepoConfig{Logger: logger})
	missions := data.NewMissionRepo(deps.DB)

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:     jobRepo,
		Missions: missions,
		Analysis: analysis,
		Metrics:  obs.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build job service: %w", err)
	}

	return ServiceContainer{
		Jobs:          jobs,
		Analysis:      analysis,
		JobRepo:       jobRepo,
		Missions:      missions,
		Cache:         cache,
		Observability: obs,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for background services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		DB:       deps.cfg.DB,
		Logger:   deps.logger,
		ErrCh:    deps.errCh,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))
	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}
		handles = append(handles, backgroundServiceHandle{mode: svc.mode, name: svc.name, done: done})
	}
	return handles
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Config == nil {
				return nil
			}
			runner, err := reaper.NewRunner(reaper.RunnerOptions{
				DB:      deps.cfg.DB,
				Jobs:    deps.cfg.Services.Jobs,
				Repo:    deps.cfg.Services.JobRepo,
				Config:  deps.cfg.Config.Reaper,
				Metrics: deps.cfg.Services.Observability.Metrics,
				Logger:  deps.logger,
			})
			if err != nil {
				return fmt.Errorf("create reaper runner: %w", err)
			}
			return runner.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	if deps.cfg != nil && deps.cfg.Config != nil && !deps.cfg.Config.IsReaperEnabled() {
		return nil
	}
	return []backgroundService{newReaperBackgroundService(deps)}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return waitForShutdown(shutdownConfig{
		quit:            quit,
		cancel:          cancel,
		errCh:           errCh,
		httpServer:      result.HTTPServer,
		jobService:      cfg.Services.Jobs,
		shutdownTimeout: cfg.Config.HTTP.ShutdownTimeout,
		logger:          logger,
		backgrounds:     result.Background,
	})
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	count := 1
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	quit            <-chan os.Signal
	cancel          context.CancelFunc
	errCh           <-chan error
	httpServer      *http.Server
	jobService      *service.JobService
	shutdownTimeout time.Duration
	logger          *slog.Logger
	backgrounds     []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	select {
	case sig := <-cfg.quit:
		cfg.logger.Info("shutting down services...", "signal", sig.String())
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	var stopErr error
	if cfg.httpServer != nil {
		timeout := cfg.shutdownTimeout
		if timeout <= 0 {
			timeout = shutdownWaitTimeout
		}
		// The service context is already cancelled here, so the deadline hangs off Background.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		stopErr = ShutdownHTTPServer(ShutdownConfig{
			Context:    shutdownCtx,
			Server:     cfg.httpServer,
			JobService: cfg.jobService,
			Logger:     cfg.logger,
		})
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}
	return stopErr
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
