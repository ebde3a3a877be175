package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/VihangaMunasinghe/ares-sub001/config"
	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
	"github.com/VihangaMunasinghe/ares-sub001/internal/observability/metrics"
)

// staleStatuses are the statuses in which a job waits on the external solver.
var staleStatuses = []model.JobStatus{model.JobStatusPending, model.JobStatusRunning}

// StaleJobCanceller cancels a job from a listed snapshot.
type StaleJobCanceller interface {
	CancelStale(ctx context.Context, rec *model.JobRecord, reason string) (*model.JobRecord, error)
}

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.JobRepository  // Required: job repository
	Jobs    StaleJobCanceller   // Required: performs the cancel transition
	Config  config.ReaperConfig // Required: reaper configuration
	Metrics *metrics.Recorder   // Optional: Prometheus recorder
	Logger  *slog.Logger        // Optional: structured logger
	Clock   func() time.Time    // Optional: defaults to time.Now
}

// ReaperService cancels pending or running jobs that stopped receiving updates, which happens
// when the solver that owned them died without reporting.
type ReaperService struct {
	repo    core.JobRepository
	jobs    StaleJobCanceller
	config  config.ReaperConfig
	metrics *metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("StaleJobCanceller is required")
	}
	if opts.Config.Interval <= 0 || opts.Config.MaxAge <= 0 {
		return nil, errors.New("reaper interval and max age must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", opts.Config.Interval,
		"max_age", opts.Config.MaxAge,
		"batch_size", opts.Config.BatchSize,
	)
	return &ReaperService{
		repo:    opts.Repo,
		jobs:    opts.Jobs,
		config:  opts.Config,
		metrics: opts.Metrics,
		logger:  logger,
		now:     now,
	}, nil
}

// Run sweeps at the configured interval until ctx is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Jitter keeps replicas that start together from sweeping in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.Sweep(ctx); err != nil && !isContextCancellation(err) {
		s.logger.ErrorContext(ctx, "initial sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && !isContextCancellation(err) {
				s.logger.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Cancelled int
	// Conflicts counts jobs that changed status between listing and cancelling.
	Conflicts int
}

// Sweep cancels every job that has been idle longer than the max age, batch by batch.
func (s *ReaperService) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	cutoff := s.now().Add(-s.config.MaxAge)
	reason := "stale: no update since " + cutoff.UTC().Format(time.RFC3339)

	defer func() {
		s.metrics.Reaped(res.Cancelled, res.Conflicts)
		if res.Cancelled > 0 || res.Conflicts > 0 {
			s.logger.InfoContext(ctx, "cancelled stale jobs",
				"count", res.Cancelled,
				"conflicts", res.Conflicts,
				"max_age", s.config.MaxAge,
			)
		}
	}()

	for {
		batch, err := s.repo.ListStale(ctx, core.ListStaleJobsParams{
			Statuses:  staleStatuses,
			Before:    cutoff,
			BatchSize: s.config.BatchSize,
		})
		if err != nil {
			return res, fmt.Errorf("list stale jobs: %w", err)
		}
		if len(batch) == 0 {
			return res, nil
		}

		progressed := false
		for _, rec := range batch {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if _, err := s.jobs.CancelStale(ctx, rec, reason); err != nil {
				if errors.Is(err, core.ErrStaleWrite) || errors.Is(err, model.ErrJobNotFound) {
					res.Conflicts++
					continue
				}
				return res, fmt.Errorf("cancel job %s: %w", rec.ID, err)
			}
			res.Cancelled++
			progressed = true
		}
		// A batch made only of conflicts would be listed again forever.
		if !progressed || len(batch) < s.config.BatchSize {
			return res, nil
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
