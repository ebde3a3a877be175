// Package reaper provides adapters for running the stale-job reaper.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/VihangaMunasinghe/ares-sub001/config"
	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/data"
	"github.com/VihangaMunasinghe/ares-sub001/internal/observability/metrics"
	"github.com/VihangaMunasinghe/ares-sub001/internal/service"
)

// Runner provides a simple adapter to run the reaper loop.
// It constructs the reaper service and runs the sweep loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Jobs   service.StaleJobCanceller
	Config config.ReaperConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Repo    core.JobRepository
	Metrics *metrics.Recorder
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	reaper, err := wireReaperService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Repo == nil {
		return errors.New("database connection or job repository is required")
	}
	if opts.Jobs == nil {
		return errors.New("job canceller is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

func wireReaperService(opts RunnerOptions) (*service.ReaperService, error) {
	repo := opts.Repo
	if repo == nil {
		repo = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	return service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Jobs:    opts.Jobs,
		Config:  opts.Config,
		Metrics: opts.Metrics,
		Logger:  opts.Logger,
	})
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}

// Sweep runs a single sweep. Used by the admin CLI.
func (r *Runner) Sweep(ctx context.Context) (service.SweepResult, error) {
	return r.reaper.Sweep(ctx)
}
