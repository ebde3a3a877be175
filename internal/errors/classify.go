package errors

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/analytics"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/job"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// From converts domain and infrastructure errors into an AppError. Errors that already are
// AppErrors pass through; anything unrecognized becomes Internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var it *job.InvalidTransitionError
	var empty *analytics.EmptyResultError
	var verrs validator.ValidationErrors

	switch {
	case errors.As(err, &it):
		return Wrap(err, ErrCodeInvalidTransition, "transition not allowed").WithDetails(it)
	case errors.As(err, &empty):
		return Wrap(err, ErrCodeEmptyResult, "no usable material changes").WithDetails(empty.Skipped)
	case errors.Is(err, model.ErrJobNotFound):
		return Wrap(err, ErrCodeNotFound, "job not found")
	case errors.Is(err, model.ErrMissionNotFound):
		return Wrap(err, ErrCodeNotFound, "mission not found")
	case errors.Is(err, core.ErrStaleWrite):
		return Wrap(err, ErrCodeConflict, "job changed while the request was processed")
	case errors.Is(err, analytics.ErrMalformedPayload),
		errors.Is(err, job.ErrProgressNotRunning),
		errors.Is(err, job.ErrProgressOutOfRange),
		errors.Is(err, job.ErrProgressRegression):
		return Wrap(err, ErrCodeValidation, "invalid request")
	case errors.As(err, &verrs):
		field := ""
		if len(verrs) > 0 {
			field = verrs[0].Field()
		}
		return &AppError{Code: ErrCodeValidation, Message: "invalid request", Field: field, Cause: err}
	}

	var dbErr *AppError
	if errors.As(MapDBError(err), &dbErr) {
		return dbErr
	}
	return Wrap(err, ErrCodeInternal, "internal error")
}
