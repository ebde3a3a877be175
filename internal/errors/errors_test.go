package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/analytics"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/job"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "job not found", NotFoundf("job %s", "not found").Error())
	assert.Equal(t, "load job: boom", Wrap(errors.New("boom"), ErrCodeInternal, "load job").Error())
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "x"))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := fmt.Errorf("outer: %w", Wrap(cause, ErrCodeConflict, "wrapped"))

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsConflict(err))
	assert.Equal(t, ErrCodeConflict, GetCode(err))
	assert.Empty(t, GetCode(cause))
}

func TestAppError_WithDetails(t *testing.T) {
	base := Validationf("bad")
	withDetails := base.WithDetails(map[string]int{"n": 1})

	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]int{"n": 1}, withDetails.Details)
}

func TestFrom(t *testing.T) {
	type req struct {
		Name string `validate:"required"`
	}
	verr := validator.New().Struct(req{})
	require.Error(t, verr)

	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
		wantHTTP int
	}{
		{
			name:     "invalid transition",
			err:      fmt.Errorf("transition: %w", &job.InvalidTransitionError{From: model.JobStatusReady, To: model.JobStatusCompleted}),
			wantCode: ErrCodeInvalidTransition,
			wantHTTP: http.StatusConflict,
		},
		{
			name:     "empty result",
			err:      &analytics.EmptyResultError{},
			wantCode: ErrCodeEmptyResult,
			wantHTTP: http.StatusUnprocessableEntity,
		},
		{name: "job not found", err: model.ErrJobNotFound, wantCode: ErrCodeNotFound, wantHTTP: http.StatusNotFound},
		{name: "mission not found", err: model.ErrMissionNotFound, wantCode: ErrCodeNotFound, wantHTTP: http.StatusNotFound},
		{name: "stale write", err: core.ErrStaleWrite, wantCode: ErrCodeConflict, wantHTTP: http.StatusConflict},
		{name: "malformed payload", err: analytics.ErrMalformedPayload, wantCode: ErrCodeValidation, wantHTTP: http.StatusBadRequest},
		{name: "progress regression", err: job.ErrProgressRegression, wantCode: ErrCodeValidation, wantHTTP: http.StatusBadRequest},
		{name: "validator", err: verr, wantCode: ErrCodeValidation, wantHTTP: http.StatusBadRequest},
		{name: "app error passes through", err: Conflictf("taken"), wantCode: ErrCodeConflict, wantHTTP: http.StatusConflict},
		{name: "unknown", err: errors.New("boom"), wantCode: ErrCodeInternal, wantHTTP: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantHTTP, HTTPStatus(got.Code))
		})
	}
}

func TestFrom_InvalidTransitionDetails(t *testing.T) {
	it := &job.InvalidTransitionError{From: model.JobStatusReady, To: model.JobStatusCompleted}
	got := From(it)
	assert.Same(t, it, got.Details)
	assert.True(t, IsInvalidTransition(got))
	assert.Nil(t, From(nil))
}

func TestFrom_ValidationField(t *testing.T) {
	type req struct {
		MissionID string `validate:"required"`
	}
	got := From(validator.New().Struct(req{}))
	assert.Equal(t, "MissionID", got.Field)
}
