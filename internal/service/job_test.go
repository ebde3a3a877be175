package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/analytics"
	domainjob "github.com/VihangaMunasinghe/ares-sub001/internal/domain/job"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
	apperrors "github.com/VihangaMunasinghe/ares-sub001/internal/errors"
	"github.com/VihangaMunasinghe/ares-sub001/internal/mocks"
	"github.com/VihangaMunasinghe/ares-sub001/internal/observability/metrics"
	"github.com/VihangaMunasinghe/ares-sub001/internal/testutil"
)

const testMissionID = "mission-1"

var configPath = []model.JobStatus{
	model.JobStatusEntitiesConfig,
	model.JobStatusInventoryConfig,
	model.JobStatusDemandsConfig,
	model.JobStatusResourcesConfig,
	model.JobStatusReady,
	model.JobStatusPending,
	model.JobStatusRunning,
}

type jobServiceFixture struct {
	svc      *JobService
	repo     *testutil.MemJobRepo
	registry *prometheus.Registry
}

func newJobServiceFixture(t *testing.T, repo core.JobRepository) *jobServiceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	missions := mocks.NewMockMissionRepository(ctrl)
	missions.EXPECT().GetByID(gomock.Any(), testMissionID).Return(testutil.NewMission(testMissionID), nil).AnyTimes()
	missions.EXPECT().GetByID(gomock.Any(), gomock.Not(testMissionID)).Return(nil, model.ErrMissionNotFound).AnyTimes()

	mem, _ := repo.(*testutil.MemJobRepo)
	if repo == nil {
		mem = testutil.NewMemJobRepo()
		repo = mem
	}
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	svc := MustNewJobService(JobServiceOptions{
		Repo:     repo,
		Missions: missions,
		Analysis: MustNewAnalysisService(AnalysisServiceOptions{
			Analyzer: analytics.MustNewAnalyzer(analytics.AnalyzerOptions{}),
			Metrics:  rec,
		}),
		Metrics: rec,
	})
	return &jobServiceFixture{svc: svc, repo: mem, registry: reg}
}

func (f *jobServiceFixture) runningJob(t *testing.T) *model.JobRecord {
	t.Helper()
	ctx := context.Background()
	rec, err := f.svc.Create(ctx, &model.CreateJobRequest{Type: model.JobTypeOptimization, MissionID: testMissionID})
	require.NoError(t, err)
	for _, to := range configPath {
		rec, err = f.svc.RequestTransition(ctx, rec.ID, to, "")
		require.NoError(t, err, "transition to %s", to)
	}
	return rec
}

func validPayload(t *testing.T) []byte {
	return testutil.NewDiffPayload().
		WithChange(testutil.NewChange("w1", "Water", "life_support").Quantities(100, 60).Impact("mass_saving")).
		WithChange(testutil.NewChange("r1", "Recycler", "equipment").Quantities(0, 2).Impact("recycling_gain")).
		WithSummary(40, 2, 1, 0).
		JSON(t)
}

func TestNewJobService_RequiresDependencies(t *testing.T) {
	_, err := NewJobService(JobServiceOptions{})
	require.Error(t, err)

	ctrl := gomock.NewController(t)
	_, err = NewJobService(JobServiceOptions{Repo: mocks.NewMockJobRepository(ctrl)})
	require.Error(t, err)

	_, err = NewJobService(JobServiceOptions{
		Repo:     mocks.NewMockJobRepository(ctrl),
		Missions: mocks.NewMockMissionRepository(ctrl),
	})
	require.Error(t, err)
}

func TestJobService_Create(t *testing.T) {
	ctx := context.Background()
	f := newJobServiceFixture(t, nil)

	t.Run("draft for existing mission", func(t *testing.T) {
		rec, err := f.svc.Create(ctx, &model.CreateJobRequest{Type: model.JobTypeOptimization, MissionID: " " + testMissionID})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusDraft, rec.Status)
		assert.Equal(t, testMissionID, rec.MissionID)
		assert.Zero(t, rec.Progress)
		assert.Nil(t, rec.Result)
		assert.Nil(t, rec.Error)
	})

	t.Run("unknown mission", func(t *testing.T) {
		_, err := f.svc.Create(ctx, &model.CreateJobRequest{Type: model.JobTypeOptimization, MissionID: "nope"})
		require.ErrorIs(t, err, model.ErrMissionNotFound)
		assert.True(t, apperrors.IsNotFound(apperrors.From(err)))
	})

	t.Run("invalid type", func(t *testing.T) {
		_, err := f.svc.Create(ctx, &model.CreateJobRequest{Type: "teleport", MissionID: testMissionID})
		require.Error(t, err)
	})

	t.Run("nil request", func(t *testing.T) {
		_, err := f.svc.Create(ctx, nil)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestJobService_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newJobServiceFixture(t, nil)
	rec := f.runningJob(t)
	require.NotNil(t, rec.StartedAt)

	rec, err := f.svc.UpdateProgress(ctx, rec.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, rec.Progress)

	done, report, err := f.svc.SubmitResult(ctx, rec.ID, validPayload(t))
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, model.JobStatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Nil(t, done.Error)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Result)
	assert.True(t, done.Result.Success)

	var stored analytics.Report
	require.NoError(t, json.Unmarshal(done.Result.Data, &stored))
	require.Len(t, stored.Diff.MaterialChanges, 2)
	assert.InDelta(t, -40, stored.Diff.MaterialChanges[0].Change, 1e-9)
	assert.Equal(t, model.ChangeTypeReduced, stored.Diff.MaterialChanges[0].ChangeType)
	assert.Equal(t, model.ChangeTypeAdded, stored.Diff.MaterialChanges[1].ChangeType)

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Transitions, len(configPath)+1)
	assert.Equal(t, model.JobStatusDraft, got.Transitions[0].From)
	assert.Equal(t, model.JobStatusCompleted, got.Transitions[len(got.Transitions)-1].To)

	data, err := f.svc.Analysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(done.Result.Data), string(data))

	n, err := promtest.GatherAndCount(f.registry, "ares_job_transitions_total")
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestJobService_RejectedTransitionLeavesRecord(t *testing.T) {
	ctx := context.Background()
	f := newJobServiceFixture(t, nil)
	rec, err := f.svc.Create(ctx, &model.CreateJobRequest{Type: model.JobTypeSimulation, MissionID: testMissionID})
	require.NoError(t, err)

	_, err = f.svc.RequestTransition(ctx, rec.ID, model.JobStatusRunning, "skip ahead")
	require.Error(t, err)
	assert.True(t, domainjob.IsInvalidTransition(err))
	assert.True(t, apperrors.IsInvalidTransition(apperrors.From(err)))

	_, err = f.svc.RequestTransition(ctx, rec.ID, "bogus", "")
	assert.True(t, domainjob.IsInvalidTransition(err))

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDraft, got.Status)
	assert.Empty(t, got.Transitions)
}

func TestJobService_CancelAndTerminal(t *testing.T) {
	ctx := context.Background()
	f := newJobServiceFixture(t, nil)
	rec, err := f.svc.Create(ctx, &model.CreateJobRequest{Type: model.JobTypeOptimization, MissionID: testMissionID})
	require.NoError(t, err)

	cancelled, err := f.svc.RequestTransition(ctx, rec.ID, model.JobStatusCancelled, "user abort")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CompletedAt)

	for _, to := range model.AllJobStatuses() {
		_, err := f.svc.RequestTransition(ctx, rec.ID, to, "")
		assert.True(t, domainjob.IsInvalidTransition(err), "cancelled -> %s", to)
	}

	history, err := f.svc.Transitions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "user abort", history[0].Reason)
}

func TestJobService_Fail(t *testing.T) {
	ctx := context.Background()
	f := newJobServiceFixture(t, nil)
	rec := f.runningJob(t)

	_, err := f.svc.Fail(ctx, rec.ID, "  ")
	require.True(t, domainjob.IsInvalidTransition(err))

	failed, err := f.svc.Fail(ctx, rec.ID, "solver crashed")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "solver crashed", *failed.Error)
	assert.Nil(t, failed.Result)

	_, err = f.svc.Analysis(ctx, rec.ID)
	require.ErrorIs(t, err, ErrNoAnalysis)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestJobService_UpdateProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("only while running", func(t *testing.T) {
		f := newJobServiceFixture(t, nil)
		rec, err := f.svc.Create(ctx, &model.CreateJobRequest{Type: model.JobTypeOptimization, MissionID: testMissionID})
		require.NoError(t, err)
		_, err = f.svc.UpdateProgress(ctx, rec.ID, 10)
		require.ErrorIs(t, err, domainjob.ErrProgressNotRunning)
	})

	tests := []struct {
		name    string
		updates []int
		wantErr error
		want    int
	}{
		{name: "monotonic", updates: []int{10, 50, 90}, want: 90},
		{name: "repeat is a no-op", updates: []int{30, 30}, want: 30},
		{name: "regression rejected", updates: []int{60, 20}, wantErr: domainjob.ErrProgressRegression, want: 60},
		{name: "above range", updates: []int{101}, wantErr: domainjob.ErrProgressOutOfRange, want: 0},
		{name: "below range", updates: []int{-1}, wantErr: domainjob.ErrProgressOutOfRange, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJobServiceFixture(t, nil)
			rec := f.runningJob(t)
			var err error
			for _, v := range tt.updates {
				_, err = f.svc.UpdateProgress(ctx, rec.ID, v)
			}
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, apperrors.IsValidation(apperrors.From(err)))
			} else {
				require.NoError(t, err)
			}
			got, err := f.svc.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Progress)
			assert.Equal(t, model.JobStatusRunning, got.Status)
		})
	}
}

func TestJobService_SubmitResult(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed payload fails the job", func(t *testing.T) {
		f := newJobServiceFixture(t, nil)
		rec := f.runningJob(t)

		failed, report, err := f.svc.SubmitResult(ctx, rec.ID, []byte(`{"materialChanges": "nope"}`))
		require.ErrorIs(t, err, analytics.ErrMalformedPayload)
		assert.Nil(t, report)
		require.NotNil(t, failed)
		assert.Equal(t, model.JobStatusFailed, failed.Status)
		require.NotNil(t, failed.Error)
		assert.Contains(t, *failed.Error, "malformed")
	})

	t.Run("no usable entries fails the job", func(t *testing.T) {
		f := newJobServiceFixture(t, nil)
		rec := f.runningJob(t)
		raw := testutil.NewDiffPayload().
			WithChange(testutil.NewChange("x", "Broken", "misc").Quantities(-1, 2).Impact("mass_saving")).
			JSON(t)

		failed, _, err := f.svc.SubmitResult(ctx, rec.ID, raw)
		require.True(t, analytics.IsEmptyResult(err))
		assert.True(t, apperrors.IsEmptyResult(apperrors.From(err)))
		assert.Equal(t, model.JobStatusFailed, failed.Status)
	})

	t.Run("not running", func(t *testing.T) {
		f := newJobServiceFixture(t, nil)
		rec, err := f.svc.Create(ctx, &model.CreateJobRequest{Type: model.JobTypeOptimization, MissionID: testMissionID})
		require.NoError(t, err)

		_, _, err = f.svc.SubmitResult(ctx, rec.ID, validPayload(t))
		require.True(t, domainjob.IsInvalidTransition(err))

		got, err := f.svc.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusDraft, got.Status)
	})

	t.Run("week indices beyond the mission are dropped", func(t *testing.T) {
		f := newJobServiceFixture(t, nil)
		rec := f.runningJob(t)
		raw := testutil.NewDiffPayload().
			WithChange(testutil.NewChange("w1", "Water", "life_support").
				Quantities(10, 5).Impact("mass_saving").Set("weekApplied", []int{12, 3, 3, 1})).
			JSON(t)

		_, report, err := f.svc.SubmitResult(ctx, rec.ID, raw)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3}, report.Diff.MaterialChanges[0].WeekApplied)
		assert.NotEmpty(t, report.Corrections)
	})
}

func TestJobService_StaleWrite(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	f := newJobServiceFixture(t, repo)

	rec := testutil.NewJob(testMissionID).WithStatus(model.JobStatusReady).Build()
	repo.EXPECT().GetByID(gomock.Any(), rec.ID).Return(rec, nil)
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p core.UpdateJobParams) (*model.JobRecord, error) {
			assert.Equal(t, model.JobStatusReady, p.ExpectStatus)
			assert.Equal(t, model.JobStatusPending, p.Record.Status)
			require.NotNil(t, p.Transition)
			return nil, core.ErrStaleWrite
		})

	_, err := f.svc.RequestTransition(ctx, rec.ID, model.JobStatusPending, "")
	require.ErrorIs(t, err, core.ErrStaleWrite)
	assert.True(t, apperrors.IsConflict(apperrors.From(err)))
}

func TestJobService_Lookups(t *testing.T) {
	ctx := context.Background()
	f := newJobServiceFixture(t, nil)

	_, err := f.svc.Get(ctx, "not-a-uuid")
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, model.ErrJobNotFound)

	status := model.JobStatus("sideways")
	_, err = f.svc.List(ctx, model.JobListOptions{Status: &status})
	assert.True(t, apperrors.IsValidation(err))

	for range 3 {
		_, err := f.svc.Create(ctx, &model.CreateJobRequest{Type: model.JobTypeAnalysis, MissionID: testMissionID})
		require.NoError(t, err)
	}
	draft := model.JobStatusDraft
	jobs, err := f.svc.List(ctx, model.JobListOptions{Status: &draft})
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestProgressRejectReason(t *testing.T) {
	assert.Equal(t, "regression", progressRejectReason(domainjob.ErrProgressRegression))
	assert.Equal(t, "not_running", progressRejectReason(domainjob.ErrProgressNotRunning))
	assert.Equal(t, "out_of_range", progressRejectReason(domainjob.ErrProgressOutOfRange))
	assert.Equal(t, "other", progressRejectReason(errors.New("x")))
}
