package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  ErrorCode
		wantField string
		wantMsg   string
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: fmt.Errorf("query: %w", context.Canceled), wantCode: ErrCodeCanceled},
		{name: "no rows", err: pgx.ErrNoRows, wantCode: ErrCodeNotFound},
		{
			name:      "unique violation from column",
			err:       &pgconn.PgError{Code: pgerrcode.UniqueViolation, ColumnName: "id"},
			wantCode:  ErrCodeConflict,
			wantField: "id",
		},
		{
			name:      "unique violation from detail",
			err:       &pgconn.PgError{Code: pgerrcode.UniqueViolation, Detail: `Key (id)=(m-1) already exists.`},
			wantCode:  ErrCodeConflict,
			wantField: "id",
		},
		{
			name: "missing mission",
			err: &pgconn.PgError{
				Code:   pgerrcode.ForeignKeyViolation,
				Detail: `Key (mission_id)=(m-9) is not present in table "missions".`,
			},
			wantCode: ErrCodeForeignKey,
			wantMsg:  "referenced mission does not exist",
		},
		{
			name: "job still referenced",
			err: &pgconn.PgError{
				Code:   pgerrcode.ForeignKeyViolation,
				Detail: `Key (id)=(x) is still referenced from table "job_transitions".`,
			},
			wantCode: ErrCodeForeignKey,
			wantMsg:  "still in use by job transition",
		},
		{
			name:     "check violation",
			err:      &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "jobs_progress_check"},
			wantCode: ErrCodeValidation,
			wantMsg:  "invalid value: violates jobs_progress_check",
		},
		{
			name:      "not null",
			err:       &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "mission_id"},
			wantCode:  ErrCodeValidation,
			wantField: "mission_id",
		},
		{name: "bad uuid", err: &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation}, wantCode: ErrCodeValidation},
		{name: "other pg error", err: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, wantCode: ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if got := GetCode(err); got != tt.wantCode {
				t.Fatalf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
			if got := GetField(err); got != tt.wantField {
				t.Errorf("MapDBError() field = %q, want %q", got, tt.wantField)
			}
			var appErr *AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("MapDBError() = %T, want *AppError", err)
			}
			if tt.wantMsg != "" && appErr.Message != tt.wantMsg {
				t.Errorf("MapDBError() message = %q, want %q", appErr.Message, tt.wantMsg)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("MapDBError() should wrap the original error")
			}
		})
	}
}

func TestMapDBError_Unrecognized(t *testing.T) {
	orig := errors.New("boom")
	if got := MapDBError(orig); got != orig {
		t.Errorf("MapDBError() = %v, want original error", got)
	}
}
