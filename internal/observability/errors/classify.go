// Package errors derives low-cardinality labels from errors for metrics and logs.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/VihangaMunasinghe/ares-sub001/internal/errors"
)

// Classify returns a normalized label for err. Known errors map to their application error code;
// anything else is named after the innermost concrete type, e.g. "net_operror".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var appErr *apperrors.AppError
	if goerrors.As(err, &appErr) {
		return string(appErr.Code)
	}
	if mapped := apperrors.From(err); mapped != nil && mapped.Code != apperrors.ErrCodeInternal {
		return string(mapped.Code)
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
