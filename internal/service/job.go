package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/analytics"
	domainjob "github.com/VihangaMunasinghe/ares-sub001/internal/domain/job"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
	apperrors "github.com/VihangaMunasinghe/ares-sub001/internal/errors"
	"github.com/VihangaMunasinghe/ares-sub001/internal/observability/metrics"
)

// ErrNoAnalysis is returned when a job has no stored analysis report.
var ErrNoAnalysis = errors.New("job has no analysis report")

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo     core.JobRepository     // Required: job repository
	Missions core.MissionRepository // Required: mission lookup
	Analysis *AnalysisService       // Required: result analysis
	Watcher  domainjob.Watcher      // Optional: status change fan-out, defaults to in-process
	Metrics  *metrics.Recorder      // Optional: Prometheus recorder
	Clock    domainjob.Clock        // Optional: defaults to time.Now
	Logger   *slog.Logger           // Optional: structured logger
}

// JobService owns the job lifecycle: creation, status transitions, progress and result submission.
// Every write goes through the state machine and is persisted with a compare-and-set on the
// previous status, so a transition is applied entirely or not at all.
type JobService struct {
	repo     core.JobRepository
	missions core.MissionRepository
	analysis *AnalysisService
	machine  *domainjob.Machine
	watcher  domainjob.Watcher
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Missions == nil {
		return nil, errors.New("MissionRepository is required")
	}
	if opts.Analysis == nil {
		return nil, errors.New("AnalysisService is required")
	}
	watcher := opts.Watcher
	if watcher == nil {
		watcher = domainjob.NewStatusWatcher()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		repo:     opts.Repo,
		missions: opts.Missions,
		analysis: opts.Analysis,
		machine:  domainjob.NewMachine(opts.Clock),
		watcher:  watcher,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "job_service"),
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create creates a draft job for an existing mission.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest) (*model.JobRecord, error) {
	if req == nil {
		return nil, apperrors.Validationf("request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}
	req.MissionID = strings.TrimSpace(req.MissionID)
	if _, err := s.missions.GetByID(ctx, req.MissionID); err != nil {
		return nil, fmt.Errorf("lookup mission: %w", err)
	}

	rec, err := s.repo.Create(ctx, &model.JobRecord{
		Type:      req.Type,
		Status:    model.JobStatusDraft,
		MissionID: req.MissionID,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.DebugContext(ctx, "job created", "job_id", rec.ID, "type", rec.Type, "mission_id", rec.MissionID)
	return rec, nil
}

// Get returns a job together with its transition history.
func (s *JobService) Get(ctx context.Context, id string) (*model.JobRecord, error) {
	if err := validateJobID(id); err != nil {
		return nil, err
	}
	var (
		rec     *model.JobRecord
		history []model.StateTransition
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = s.repo.GetByID(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.repo.ListTransitions(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	rec.Transitions = history
	return rec, nil
}

// List returns jobs newest first.
func (s *JobService) List(ctx context.Context, opts model.JobListOptions) ([]*model.JobRecord, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("unknown status %q", *opts.Status))
	}
	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Transitions returns a job's transition history, oldest first.
func (s *JobService) Transitions(ctx context.Context, id string) ([]model.StateTransition, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Transitions, nil
}

// RequestTransition moves a job to status to. Illegal moves fail with *job.InvalidTransitionError
// and leave the stored record untouched.
func (s *JobService) RequestTransition(
	ctx context.Context,
	id string,
	to model.JobStatus,
	reason string,
) (*model.JobRecord, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, rec, to, domainjob.Outcome{Reason: strings.TrimSpace(reason)})
}

// Fail moves a running job to failed with the given message.
func (s *JobService) Fail(ctx context.Context, id, message string) (*model.JobRecord, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, rec, model.JobStatusFailed, domainjob.Outcome{Error: message})
}

// UpdateProgress sets the progress of a running job. Rejected values are logged and returned as
// errors; the stored record is unchanged.
func (s *JobService) UpdateProgress(ctx context.Context, id string, value int) (*model.JobRecord, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	next, decision, err := s.machine.SetProgress(rec, value)
	if err != nil {
		s.logger.WarnContext(ctx, "progress update rejected",
			"job_id", id,
			"status", rec.Status,
			"current", decision.Previous,
			"requested", decision.Requested,
			"error", err,
		)
		s.metrics.ProgressRejected(progressRejectReason(err))
		return nil, err
	}
	if !decision.Applied() {
		return rec, nil
	}

	updated, err := s.repo.Update(ctx, core.UpdateJobParams{Record: next, ExpectStatus: rec.Status})
	if err != nil {
		if errors.Is(err, core.ErrStaleWrite) {
			s.metrics.ProgressRejected("stale")
		}
		return nil, fmt.Errorf("update progress: %w", err)
	}
	s.watcher.Publish(id)
	return updated, nil
}

// SubmitResult analyzes a raw solver result for a running job. A usable result completes the job
// with the serialized report as its result data. A malformed or empty result fails the job; the
// failed record is returned together with the analysis error.
func (s *JobService) SubmitResult(
	ctx context.Context,
	id string,
	raw []byte,
) (*model.JobRecord, *analytics.Report, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if rec.Status != model.JobStatusRunning {
		return nil, nil, &domainjob.InvalidTransitionError{
			From:   rec.Status,
			To:     model.JobStatusCompleted,
			Reason: "results are accepted only while running",
		}
	}

	mission, err := s.missions.GetByID(ctx, rec.MissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup mission: %w", err)
	}

	report, analysisErr := s.analysis.Analyze(ctx, raw, mission.DurationWeeks)
	if analysisErr != nil {
		s.logger.WarnContext(ctx, "result rejected", "job_id", id, "error", analysisErr)
		failed, err := s.apply(ctx, rec, model.JobStatusFailed, domainjob.Outcome{
			Error:  analysisErr.Error(),
			Reason: "result rejected",
		})
		if err != nil {
			return nil, nil, errors.Join(analysisErr, err)
		}
		return failed, nil, analysisErr
	}

	data, err := json.Marshal(report)
	if err != nil {
		return nil, nil, fmt.Errorf("encode report: %w", err)
	}
	s.logReport(ctx, id, report)

	done, err := s.apply(ctx, rec, model.JobStatusCompleted, domainjob.Outcome{
		Result: &model.JobResult{Success: true, Data: data},
	})
	if err != nil {
		return nil, nil, err
	}
	return done, report, nil
}

// Analysis returns the stored report of a completed job.
func (s *JobService) Analysis(ctx context.Context, id string) (json.RawMessage, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.JobStatusCompleted || rec.Result == nil || len(rec.Result.Data) == 0 {
		return nil, apperrors.Wrap(ErrNoAnalysis, apperrors.ErrCodeNotFound,
			fmt.Sprintf("job is %s and has no analysis report", rec.Status))
	}
	return rec.Result.Data, nil
}

// CancelStale cancels a job the reaper found idle. The write is guarded by the status the job had
// when it was listed, so a job that moved on in the meantime is left alone.
func (s *JobService) CancelStale(ctx context.Context, rec *model.JobRecord, reason string) (*model.JobRecord, error) {
	return s.apply(ctx, rec, model.JobStatusCancelled, domainjob.Outcome{Reason: reason})
}

func (s *JobService) load(ctx context.Context, id string) (*model.JobRecord, error) {
	if err := validateJobID(id); err != nil {
		return nil, err
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return rec, nil
}

// apply runs one state machine transition from rec and persists it.
func (s *JobService) apply(
	ctx context.Context,
	rec *model.JobRecord,
	to model.JobStatus,
	out domainjob.Outcome,
) (*model.JobRecord, error) {
	metric := metrics.JobMetric{JobType: string(rec.Type), To: string(to), Result: metrics.ResultSuccess}

	next, err := s.machine.Transition(rec, to, out)
	if err != nil {
		metric.Result, metric.Err = metrics.ResultError, err
		s.metrics.EmitJobLifecycle(metric)
		return nil, err
	}

	tr := next.Transitions[len(next.Transitions)-1]
	updated, err := s.repo.Update(ctx, core.UpdateJobParams{
		Record:       next,
		ExpectStatus: rec.Status,
		Transition:   &tr,
	})
	if err != nil {
		metric.Result, metric.Err = metrics.ResultError, err
		s.metrics.EmitJobLifecycle(metric)
		return nil, fmt.Errorf("persist transition %s -> %s: %w", rec.Status, to, err)
	}

	if to.Terminal() && updated.StartedAt != nil && updated.CompletedAt != nil {
		metric.RunTime = updated.CompletedAt.Sub(*updated.StartedAt)
	}
	s.metrics.EmitJobLifecycle(metric)
	s.logger.InfoContext(ctx, "job transitioned",
		"job_id", rec.ID,
		"from", rec.Status,
		"to", to,
		"reason", out.Reason,
	)
	s.watcher.Publish(rec.ID)
	return updated, nil
}

func (s *JobService) logReport(ctx context.Context, id string, report *analytics.Report) {
	for _, c := range report.Corrections {
		s.logger.DebugContext(ctx, "entry corrected",
			"job_id", id, "index", c.Index, "item_id", c.ItemID, "field", c.Field,
			"supplied", c.Supplied, "derived", c.Derived)
	}
	if len(report.Skipped) > 0 {
		s.logger.WarnContext(ctx, "entries skipped", "job_id", id, "count", len(report.Skipped))
	}
	for _, w := range report.Reconciliation.Warnings {
		s.logger.WarnContext(ctx, "inconsistent summary",
			"job_id", id, "field", w.Field, "declared", w.Declared, "computed", w.Computed)
	}
}

func progressRejectReason(err error) string {
	switch {
	case errors.Is(err, domainjob.ErrProgressNotRunning):
		return "not_running"
	case errors.Is(err, domainjob.ErrProgressOutOfRange):
		return "out_of_range"
	case errors.Is(err, domainjob.ErrProgressRegression):
		return "regression"
	default:
		return "other"
	}
}

func validateJobID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.ValidationField("id", "job id must be a UUID")
	}
	return nil
}

// watchDeadline bounds a long poll.
func watchDeadline(wait, limit time.Duration) time.Duration {
	if wait <= 0 || wait > limit {
		return limit
	}
	return wait
}
