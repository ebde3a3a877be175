package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// reKeyField extracts the column from "Key (field)=(value) already exists.".
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// reNotPresent detects a missing parent: "... is not present in table ...".
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
	// reReferencedFrom detects a parent still in use: "... is still referenced from table ...".
	reReferencedFrom = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
)

// tableDomains names tables the way API clients know them.
var tableDomains = map[string]string{
	"missions":        "mission",
	"jobs":            "job",
	"job_transitions": "job transition",
}

// MapDBError maps database errors to AppError instances:
//   - pgx.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - foreign key violations → ForeignKey
//   - check, not-null and invalid text representation → Validation
//   - context deadline/cancel → Timeout/Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "request was canceled")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "resource not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		field := pgErr.ColumnName
		if field == "" {
			if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
				field = m[1]
			}
		}
		return &AppError{Code: ErrCodeConflict, Message: "value already exists", Field: field, Cause: pgErr}
	case pgerrcode.ForeignKeyViolation:
		return &AppError{Code: ErrCodeForeignKey, Message: foreignKeyMessage(pgErr), Cause: pgErr}
	case pgerrcode.CheckViolation:
		msg := "invalid value"
		if pgErr.ConstraintName != "" {
			msg = "invalid value: violates " + pgErr.ConstraintName
		}
		return &AppError{Code: ErrCodeValidation, Message: msg, Field: pgErr.ColumnName, Cause: pgErr}
	case pgerrcode.NotNullViolation:
		return &AppError{Code: ErrCodeValidation, Message: "field is required", Field: pgErr.ColumnName, Cause: pgErr}
	case pgerrcode.InvalidTextRepresentation:
		return &AppError{Code: ErrCodeValidation, Message: "malformed identifier or value", Cause: pgErr}
	default:
		return &AppError{Code: ErrCodeInternal, Message: "database error", Cause: pgErr}
	}
}

func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "referenced " + domainName(m[1]) + " does not exist"
	}
	if m := reReferencedFrom.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "still in use by " + domainName(m[1])
	}
	if pgErr.TableName != "" {
		return "reference to " + domainName(pgErr.TableName) + " is invalid"
	}
	return "referenced item does not exist"
}

func domainName(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if name, ok := tableDomains[table]; ok {
		return name
	}
	return strings.ReplaceAll(table, "_", " ")
}
