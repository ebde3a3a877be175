// Package job implements the job status state machine and progress rules.
package job

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// transitions is the complete adjacency table. Cancellation edges are added in init so every
// non-terminal status must still appear here as a key.
var transitions = map[model.JobStatus][]model.JobStatus{
	model.JobStatusDraft:           {model.JobStatusEntitiesConfig},
	model.JobStatusEntitiesConfig:  {model.JobStatusInventoryConfig},
	model.JobStatusInventoryConfig: {model.JobStatusDemandsConfig},
	model.JobStatusDemandsConfig:   {model.JobStatusResourcesConfig},
	model.JobStatusResourcesConfig: {model.JobStatusReady},
	model.JobStatusReady:           {model.JobStatusPending},
	model.JobStatusPending:         {model.JobStatusRunning},
	model.JobStatusRunning:         {model.JobStatusCompleted, model.JobStatusFailed},
	model.JobStatusCompleted:       nil,
	model.JobStatusFailed:          nil,
	model.JobStatusCancelled:       nil,
}

func init() {
	for _, s := range model.AllJobStatuses() {
		next, ok := transitions[s]
		if !ok {
			panic(fmt.Sprintf("job status %q has no transition entry", s))
		}
		if !s.Terminal() {
			transitions[s] = append(next, model.JobStatusCancelled)
		}
	}
}

// Allowed returns the statuses reachable from s in one step.
func Allowed(from model.JobStatus) []model.JobStatus {
	return append([]model.JobStatus(nil), transitions[from]...)
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to model.JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError is returned when a status change is not permitted.
type InvalidTransitionError struct {
	From   model.JobStatus `json:"from"`
	To     model.JobStatus `json:"to"`
	Reason string          `json:"reason,omitempty"`
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// IsInvalidTransition reports whether err is (or wraps) an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var it *InvalidTransitionError
	return errors.As(err, &it)
}

// Outcome carries the data that accompanies a transition into a terminal status.
type Outcome struct {
	Result *model.JobResult
	Error  string
	Reason string
}

// Clock returns the current time.
type Clock func() time.Time

// Machine applies transitions to job records.
type Machine struct {
	now Clock
}

// NewMachine constructs a Machine. A nil clock uses time.Now.
func NewMachine(clock Clock) *Machine {
	if clock == nil {
		clock = time.Now
	}
	return &Machine{now: clock}
}

// Transition returns a copy of rec moved to the target status. rec itself is never modified, so a
// failed transition leaves the caller's record exactly as it was.
func (m *Machine) Transition(rec *model.JobRecord, to model.JobStatus, out Outcome) (*model.JobRecord, error) {
	if rec == nil {
		return nil, errors.New("job record is required")
	}
	from := rec.Status
	if !to.Valid() {
		return nil, &InvalidTransitionError{From: from, To: to, Reason: "unknown status"}
	}
	if !CanTransition(from, to) {
		return nil, &InvalidTransitionError{From: from, To: to}
	}
	if err := checkOutcome(from, to, out); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	next := rec.Clone()
	next.Status = to
	next.UpdatedAt = now

	switch to {
	case model.JobStatusRunning:
		if next.StartedAt == nil {
			next.StartedAt = &now
		}
		next.Progress = 0
	case model.JobStatusCompleted:
		next.Progress = 100
		next.Result = out.Result
		next.Error = nil
	case model.JobStatusFailed:
		msg := strings.TrimSpace(out.Error)
		next.Error = &msg
		next.Result = out.Result
	}
	if to.Terminal() && next.CompletedAt == nil {
		next.CompletedAt = &now
	}

	next.Transitions = append(next.Transitions, model.StateTransition{
		From:   from,
		To:     to,
		At:     now,
		Reason: out.Reason,
	})
	return next, nil
}

func checkOutcome(from, to model.JobStatus, out Outcome) error {
	switch to {
	case model.JobStatusCompleted:
		if out.Result == nil || !out.Result.Success {
			return &InvalidTransitionError{From: from, To: to, Reason: "successful result required"}
		}
		if strings.TrimSpace(out.Error) != "" {
			return &InvalidTransitionError{From: from, To: to, Reason: "completed job cannot carry an error"}
		}
	case model.JobStatusFailed:
		if strings.TrimSpace(out.Error) == "" {
			return &InvalidTransitionError{From: from, To: to, Reason: "error message required"}
		}
		if out.Result != nil && out.Result.Success {
			return &InvalidTransitionError{From: from, To: to, Reason: "failed job cannot carry a successful result"}
		}
	default:
		if out.Result != nil || strings.TrimSpace(out.Error) != "" {
			return &InvalidTransitionError{From: from, To: to, Reason: "result and error only apply to completed or failed"}
		}
	}
	return nil
}
