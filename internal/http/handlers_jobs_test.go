package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/analytics"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
	"github.com/VihangaMunasinghe/ares-sub001/internal/mocks"
	"github.com/VihangaMunasinghe/ares-sub001/internal/observability/metrics"
	"github.com/VihangaMunasinghe/ares-sub001/internal/service"
	"github.com/VihangaMunasinghe/ares-sub001/internal/testutil"
)

const missionID = "artemis-base"

type apiFixture struct {
	handler http.Handler
	repo    *testutil.MemJobRepo
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	missions := mocks.NewMockMissionRepository(ctrl)
	missions.EXPECT().GetByID(gomock.Any(), missionID).Return(testutil.NewMission(missionID), nil).AnyTimes()
	missions.EXPECT().GetByID(gomock.Any(), gomock.Not(missionID)).Return(nil, model.ErrMissionNotFound).AnyTimes()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	analysis := service.MustNewAnalysisService(service.AnalysisServiceOptions{
		Analyzer: analytics.MustNewAnalyzer(analytics.AnalyzerOptions{
			Metrics: map[string]string{"crewEfficiency": "kpis.crewEfficiency"},
		}),
		Metrics: rec,
		Logger:  logger,
	})
	repo := testutil.NewMemJobRepo()
	jobs := service.MustNewJobService(service.JobServiceOptions{
		Repo:     repo,
		Missions: missions,
		Analysis: analysis,
		Metrics:  rec,
		Logger:   logger,
	})
	return &apiFixture{
		handler: NewRouter(RouterServices{
			Jobs:         jobs,
			Analysis:     analysis,
			Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			MaxBodyBytes: 1 << 16,
			WatchLimit:   time.Second,
			Logger:       logger,
		}),
		repo: repo,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (f *apiFixture) createJob(t *testing.T) *model.JobRecord {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/jobs", map[string]string{"type": "optimization", "mission_id": missionID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*model.JobRecord](t, rec)
}

func (f *apiFixture) runningJob(t *testing.T) *model.JobRecord {
	t.Helper()
	job := f.createJob(t)
	for _, to := range []string{
		"entities_config", "inventory_config", "demands_config", "resources_config", "ready", "pending", "running",
	} {
		rec := f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/transition", map[string]string{"status": to})
		require.Equal(t, http.StatusOK, rec.Code, "to %s: %s", to, rec.Body.String())
		job = decode[*model.JobRecord](t, rec)
	}
	return job
}

func resultPayload(t *testing.T) []byte {
	return testutil.NewDiffPayload().
		WithChange(testutil.NewChange("o2", "Oxygen", "life_support").Quantities(500, 420).Impact("mass_saving")).
		WithChange(testutil.NewChange("sh", "Shielding", "structure").Quantities(10, 12).Impact("safety_improvement")).
		WithSummary(80, 2, 0, 1).
		WithField("kpis", map[string]any{"crewEfficiency": "87.5%"}).
		Wrapped().
		JSON(t)
}

func TestJobAPI_Create(t *testing.T) {
	f := newAPI(t)

	tests := []struct {
		name    string
		body    any
		want    int
		errCode string
	}{
		{name: "created", body: map[string]string{"type": "optimization", "mission_id": missionID}, want: http.StatusCreated},
		{name: "bad json", body: "{bad", want: http.StatusBadRequest, errCode: "invalid_json"},
		{name: "unknown field", body: `{"type":"analysis","mission_id":"x","extra":1}`, want: http.StatusBadRequest, errCode: "invalid_json"},
		{name: "missing mission", body: map[string]string{"type": "optimization"}, want: http.StatusBadRequest, errCode: "validation"},
		{name: "bad type", body: map[string]string{"type": "warp", "mission_id": missionID}, want: http.StatusBadRequest, errCode: "invalid_json"},
		{name: "unknown mission", body: map[string]string{"type": "analysis", "mission_id": "ghost"}, want: http.StatusNotFound, errCode: "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/jobs", tt.body)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.errCode != "" {
				assert.Equal(t, tt.errCode, decode[ErrorResponse](t, rec).Error)
				return
			}
			job := decode[model.JobRecord](t, rec)
			assert.Equal(t, model.JobStatusDraft, job.Status)
			assert.Equal(t, missionID, job.MissionID)
		})
	}
}

func TestJobAPI_Lifecycle(t *testing.T) {
	f := newAPI(t)
	job := f.runningJob(t)
	assert.Equal(t, model.JobStatusRunning, job.Status)

	rec := f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/progress", map[string]int{"progress": 70})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 70, decode[model.JobRecord](t, rec).Progress)

	rec = f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/result", resultPayload(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[SubmitResultResponse](t, rec)
	assert.Equal(t, model.JobStatusCompleted, res.Job.Status)
	assert.Equal(t, 100, res.Job.Progress)
	require.NotNil(t, res.Report)
	require.Len(t, res.Report.Metrics, 1)
	assert.Equal(t, "crewEfficiency", res.Report.Metrics[0].Name)
	assert.Empty(t, res.Report.Malformed)

	rec = f.do(t, http.MethodGet, "/api/jobs/"+job.ID+"/analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[analytics.Report](t, rec)
	assert.Len(t, report.Diff.MaterialChanges, 2)

	rec = f.do(t, http.MethodGet, "/api/jobs/"+job.ID+"/transitions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.StateTransition](t, rec), 8)

	rec = f.do(t, http.MethodGet, "/api/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.JobRecord](t, rec)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Len(t, got.Transitions, 8)

	rec = f.do(t, http.MethodGet, "/api/jobs?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Jobs []model.JobRecord `json:"jobs"`
	}](t, rec)
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, job.ID, list.Jobs[0].ID)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ares_job_transitions_total")
}

func TestJobAPI_InvalidTransition(t *testing.T) {
	f := newAPI(t)
	job := f.createJob(t)

	rec := f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/transition", map[string]string{"status": "completed"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_transition", body.Error)

	rec = f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/transition", map[string]string{"status": "nowhere"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/jobs/"+job.ID, nil)
	assert.Equal(t, model.JobStatusDraft, decode[model.JobRecord](t, rec).Status)
}

func TestJobAPI_RejectedResult(t *testing.T) {
	f := newAPI(t)

	t.Run("empty result", func(t *testing.T) {
		job := f.runningJob(t)
		raw := testutil.NewDiffPayload().
			WithChange(testutil.NewChange("x", "X", "misc").Quantities(1, 2).Impact("vibes")).
			JSON(t)

		rec := f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/result", raw)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		res := decode[SubmitResultResponse](t, rec)
		require.NotNil(t, res.Job)
		assert.Equal(t, model.JobStatusFailed, res.Job.Status)
		require.NotNil(t, res.Error)
		assert.Equal(t, "empty_result", res.Error.Error)
		assert.Nil(t, res.Report)
	})

	t.Run("malformed", func(t *testing.T) {
		job := f.runningJob(t)
		rec := f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/result", "[1,2,3]")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		res := decode[SubmitResultResponse](t, rec)
		assert.Equal(t, model.JobStatusFailed, res.Job.Status)
	})

	t.Run("not running", func(t *testing.T) {
		job := f.createJob(t)
		rec := f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/result", resultPayload(t))
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, rec).Error)
	})
}

func TestJobAPI_ProgressAndFail(t *testing.T) {
	f := newAPI(t)
	job := f.runningJob(t)

	rec := f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/progress", map[string]int{"progress": 50})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/progress", map[string]int{"progress": 10})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/progress", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/fail", map[string]string{"error": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/fail", map[string]string{"error": "solver OOM"})
	require.Equal(t, http.StatusOK, rec.Code)
	failed := decode[model.JobRecord](t, rec)
	assert.Equal(t, model.JobStatusFailed, failed.Status)
	assert.Equal(t, 50, failed.Progress)

	rec = f.do(t, http.MethodGet, "/api/jobs/"+job.ID+"/analysis", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobAPI_Lookups(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/api/jobs/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id", decode[ErrorResponse](t, rec).Field)

	rec = f.do(t, http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/jobs?status=sideways", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobAPI_Watch(t *testing.T) {
	f := newAPI(t)
	job := f.runningJob(t)

	rec := f.do(t, http.MethodGet, "/api/jobs/"+job.ID+"/watch?wait=10ms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[WatchResponse](t, rec)
	assert.False(t, res.Changed)
	assert.Equal(t, job.ID, res.Job.ID)

	rec = f.do(t, http.MethodGet, "/api/jobs/"+job.ID+"/watch?wait=later", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "wait", decode[ErrorResponse](t, rec).Field)

	f.repo.Loaded = make(chan struct{}, 1)
	go func() {
		<-f.repo.Loaded
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/progress", strings.NewReader(`{"progress":5}`))
		f.handler.ServeHTTP(httptest.NewRecorder(), req)
	}()
	rec = f.do(t, http.MethodGet, "/api/jobs/"+job.ID+"/watch?wait=5s", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[WatchResponse](t, rec)
	assert.True(t, res.Changed)
	assert.Equal(t, 5, res.Job.Progress)
}

func TestAnalyzeAPI(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/api/analyze?max_week=4", resultPayload(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[analytics.Report](t, rec)
	assert.Len(t, report.Diff.MaterialChanges, 2)

	rec = f.do(t, http.MethodPost, "/api/analyze", `"just a string"`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/analyze?max_week=-2", resultPayload(t))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/analyze", bytes.Repeat([]byte("x"), 1<<17))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
