package job

import (
	"errors"
	"fmt"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

var (
	// ErrProgressNotRunning indicates a progress write to a job that is not running.
	ErrProgressNotRunning = errors.New("progress can only be written while running")
	// ErrProgressOutOfRange indicates a progress value outside [0,100].
	ErrProgressOutOfRange = errors.New("progress must be between 0 and 100")
	// ErrProgressRegression indicates a progress value lower than the current one.
	ErrProgressRegression = errors.New("progress must not decrease during a run")
)

// ProgressSource identifies how a progress request was resolved.
type ProgressSource string

const (
	// ProgressApplied indicates the value was written.
	ProgressApplied ProgressSource = "applied"
	// ProgressUnchanged indicates the value equals the current progress.
	ProgressUnchanged ProgressSource = "unchanged"
	// ProgressRejected indicates the value was not written.
	ProgressRejected ProgressSource = "rejected"
)

// ProgressDecision captures the outcome of a progress request.
type ProgressDecision struct {
	Requested int
	Previous  int
	Source    ProgressSource
}

// Applied reports whether the record's progress changed.
func (d ProgressDecision) Applied() bool {
	return d.Source == ProgressApplied
}

// SetProgress returns a copy of rec with progress set to value. Rejected requests return the
// original record untouched together with an error describing the violated rule.
func (m *Machine) SetProgress(rec *model.JobRecord, value int) (*model.JobRecord, ProgressDecision, error) {
	if rec == nil {
		return nil, ProgressDecision{Requested: value, Source: ProgressRejected}, errors.New("job record is required")
	}
	decision := ProgressDecision{Requested: value, Previous: rec.Progress, Source: ProgressRejected}

	if rec.Status != model.JobStatusRunning {
		return rec, decision, fmt.Errorf("%w (status %s)", ErrProgressNotRunning, rec.Status)
	}
	if value < 0 || value > 100 {
		return rec, decision, fmt.Errorf("%w: got %d", ErrProgressOutOfRange, value)
	}
	if value < rec.Progress {
		return rec, decision, fmt.Errorf("%w: %d < %d", ErrProgressRegression, value, rec.Progress)
	}
	if value == rec.Progress {
		decision.Source = ProgressUnchanged
		return rec, decision, nil
	}

	next := rec.Clone()
	next.Progress = value
	next.UpdatedAt = m.now().UTC()
	decision.Source = ProgressApplied
	return next, decision, nil
}
