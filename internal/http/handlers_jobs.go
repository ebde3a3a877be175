// Package httpx exposes the job lifecycle and result analysis as a JSON API.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/analytics"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
	apperrors "github.com/VihangaMunasinghe/ares-sub001/internal/errors"
	"github.com/VihangaMunasinghe/ares-sub001/internal/service"
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc *service.JobService
	// WatchLimit caps the wait of a watch request.
	WatchLimit time.Duration
	Logger     *slog.Logger
}

// SubmitResultResponse is returned by the result endpoint. A rejected result still moves the job
// to failed, so the failed record is returned next to the error.
type SubmitResultResponse struct {
	Job    *model.JobRecord  `json:"job"`
	Report *analytics.Report `json:"report,omitempty"`
	Error  *ErrorResponse    `json:"error,omitempty"`
}

// WatchResponse is returned by the watch endpoint.
type WatchResponse struct {
	Job     *model.JobRecord `json:"job"`
	Changed bool             `json:"changed"`
}

func (h *JobHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	WriteAppError(w, r, h.Logger, err)
}

// CreateJob handles HTTP requests to create a new job.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, job)
}

// ListJobs handles HTTP requests to list jobs with optional mission and status filters.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)
	opts := model.JobListOptions{Limit: limit, Offset: offset}

	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("mission_id")); v != "" {
		opts.MissionID = &v
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status := model.JobStatus(strings.ToLower(v))
		opts.Status = &status
	}

	jobs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "limit": limit, "offset": offset})
}

// GetJob handles HTTP requests to retrieve a job with its transition history.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Transition handles HTTP requests to move a job to another status.
func (h *JobHandlers) Transition(w http.ResponseWriter, r *http.Request) {
	var req model.TransitionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error()))
		return
	}

	job, err := h.Svc.RequestTransition(r.Context(), r.PathValue("id"), req.Status, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Progress handles HTTP requests to update the progress of a running job.
func (h *JobHandlers) Progress(w http.ResponseWriter, r *http.Request) {
	var req model.ProgressRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	job, err := h.Svc.UpdateProgress(r.Context(), r.PathValue("id"), *req.Progress)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// SubmitResult handles HTTP requests carrying the raw solver result of a running job.
func (h *JobHandlers) SubmitResult(w http.ResponseWriter, r *http.Request) {
	raw, ok := ReadBody(w, r)
	if !ok {
		return
	}

	job, report, err := h.Svc.SubmitResult(r.Context(), r.PathValue("id"), raw)
	if err != nil {
		if job == nil {
			h.fail(w, r, err)
			return
		}
		appErr := apperrors.From(err)
		WriteJSON(w, apperrors.HTTPStatus(appErr.Code), SubmitResultResponse{
			Job: job,
			Error: &ErrorResponse{
				Error:   string(appErr.Code),
				Message: err.Error(),
				Details: appErr.Details,
			},
		})
		return
	}
	WriteJSON(w, http.StatusOK, SubmitResultResponse{Job: job, Report: report})
}

// Fail handles HTTP requests to mark a running job as failed with an error message.
func (h *JobHandlers) Fail(w http.ResponseWriter, r *http.Request) {
	var req model.FailRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	job, err := h.Svc.Fail(r.Context(), r.PathValue("id"), req.Error)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Analysis handles HTTP requests for the stored report of a completed job.
func (h *JobHandlers) Analysis(w http.ResponseWriter, r *http.Request) {
	data, err := h.Svc.Analysis(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, json.RawMessage(data))
}

// Transitions handles HTTP requests for a job's transition history.
func (h *JobHandlers) Transitions(w http.ResponseWriter, r *http.Request) {
	history, err := h.Svc.Transitions(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if history == nil {
		history = []model.StateTransition{}
	}
	WriteJSON(w, http.StatusOK, history)
}

// Watch long-polls a job until its status or progress changes or the wait elapses.
func (h *JobHandlers) Watch(w http.ResponseWriter, r *http.Request) {
	wait, ok := parseDurationQuery(r, "wait")
	if !ok {
		h.fail(w, r, apperrors.ValidationField("wait", "wait must be a non-negative duration"))
		return
	}

	job, changed, err := h.Svc.Watch(r.Context(), r.PathValue("id"), wait, h.WatchLimit)
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			return
		}
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, WatchResponse{Job: job, Changed: changed})
}
