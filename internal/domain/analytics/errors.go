package analytics

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPayload indicates the raw result is not a usable optimization diff document.
var ErrMalformedPayload = errors.New("malformed optimization payload")

// ErrEmptyJustification is attached as a warning when the solver omitted its primary strategy.
var ErrEmptyJustification = errors.New("justification.primaryStrategy is empty")

// ValidationError records a material change entry that was skipped during ingestion.
type ValidationError struct {
	Index  int    `json:"index"`
	ItemID string `json:"itemId,omitempty"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("material change %d (%s): %s %s", e.Index, e.ItemID, e.Field, e.Reason)
	}
	return fmt.Sprintf("material change %d: %s %s", e.Index, e.Field, e.Reason)
}

// EmptyResultError is returned when no entry of a payload survives validation.
type EmptyResultError struct {
	Skipped []ValidationError
}

func (e *EmptyResultError) Error() string {
	if len(e.Skipped) == 0 {
		return "optimization result contains no material changes"
	}
	return fmt.Sprintf("all %d material changes were invalid", len(e.Skipped))
}

// Correction records a field the ingester derived instead of trusting the solver.
type Correction struct {
	Index    int    `json:"index"`
	ItemID   string `json:"itemId"`
	Field    string `json:"field"`
	Supplied string `json:"supplied"`
	Derived  string `json:"derived"`
}

// InconsistentSummary is an advisory warning: a declared headline figure differs from the value
// recomputed from the canonical changes.
type InconsistentSummary struct {
	Field    string  `json:"field"`
	Declared float64 `json:"declared"`
	Computed float64 `json:"computed"`
}

func (e *InconsistentSummary) Error() string {
	return fmt.Sprintf("summary %s declared %s but computed %s",
		e.Field, formatNumber(e.Declared), formatNumber(e.Computed))
}

// MalformedMetric flags a display metric that could not be parsed and rendered as 0.
type MalformedMetric struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (e *MalformedMetric) Error() string {
	if strings.TrimSpace(e.Value) == "" {
		return fmt.Sprintf("metric %s is missing", e.Name)
	}
	return fmt.Sprintf("metric %s has unparsable value %q", e.Name, e.Value)
}

// IsEmptyResult reports whether err is (or wraps) an EmptyResultError.
func IsEmptyResult(err error) bool {
	var er *EmptyResultError
	return errors.As(err, &er)
}
