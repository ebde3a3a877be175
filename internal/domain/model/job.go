// Package model defines the core data types shared by the job lifecycle and diff analytics layers.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType represents the kind of run tracked by a job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobTypeOptimization represents a resource optimization run.
	JobTypeOptimization JobType = "optimization"
	// JobTypeScheduling represents a crew/task scheduling run.
	JobTypeScheduling JobType = "scheduling"
	// JobTypeAnalysis represents an analysis-only run.
	JobTypeAnalysis JobType = "analysis"
	// JobTypeSimulation represents a simulation run.
	JobTypeSimulation JobType = "simulation"
)

const (
	// JobStatusDraft is the initial status of a newly created job.
	JobStatusDraft JobStatus = "draft"
	// JobStatusEntitiesConfig indicates the job's entities are being configured.
	JobStatusEntitiesConfig JobStatus = "entities_config"
	// JobStatusInventoryConfig indicates the job's inventory is being configured.
	JobStatusInventoryConfig JobStatus = "inventory_config"
	// JobStatusDemandsConfig indicates the job's demands are being configured.
	JobStatusDemandsConfig JobStatus = "demands_config"
	// JobStatusResourcesConfig indicates the job's resources are being configured.
	JobStatusResourcesConfig JobStatus = "resources_config"
	// JobStatusReady indicates configuration is complete.
	JobStatusReady JobStatus = "ready"
	// JobStatusPending indicates a job is waiting for the solver.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the solver is processing the job.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the run finished and a result was evaluated.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the run failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the run was aborted by a user.
	JobStatusCancelled JobStatus = "cancelled"
)

// AllJobStatuses lists every status in configuration-path order followed by the terminal states.
func AllJobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusDraft,
		JobStatusEntitiesConfig,
		JobStatusInventoryConfig,
		JobStatusDemandsConfig,
		JobStatusResourcesConfig,
		JobStatusReady,
		JobStatusPending,
		JobStatusRunning,
		JobStatusCompleted,
		JobStatusFailed,
		JobStatusCancelled,
	}
}

// ErrJobNotFound is returned when a job does not exist.
var ErrJobNotFound = errors.New("job not found")

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env and query parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeOptimization, JobTypeScheduling, JobTypeAnalysis, JobTypeSimulation:
		return true
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler for JobStatus.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", string(v))
	}
	*s = v
	return nil
}

// Valid returns true if the JobStatus is one of the enumerated statuses.
func (s JobStatus) Valid() bool {
	for _, known := range AllJobStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobRecord is a tracked run against a mission's resource model.
type JobRecord struct {
	ID          string            `json:"id"                     db:"id"`
	Type        JobType           `json:"type"                   db:"type"`
	Status      JobStatus         `json:"status"                 db:"status"`
	Progress    int               `json:"progress"               db:"progress"`
	MissionID   string            `json:"mission_id"             db:"mission_id"`
	Result      *JobResult        `json:"result,omitempty"       db:"result"`
	Error       *string           `json:"error,omitempty"        db:"error"`
	CreatedAt   time.Time         `json:"created_at"             db:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"   db:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt   time.Time         `json:"updated_at"             db:"updated_at"`
	Transitions []StateTransition `json:"transitions,omitempty"  db:"-"`
}

// Clone returns a deep copy so that pending transitions never alias the stored record.
func (r *JobRecord) Clone() *JobRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	if r.Result != nil {
		res := *r.Result
		if r.Result.Data != nil {
			res.Data = append(json.RawMessage(nil), r.Result.Data...)
		}
		out.Result = &res
	}
	if r.Transitions != nil {
		out.Transitions = append([]StateTransition(nil), r.Transitions...)
	}
	return &out
}

// StateTransition records a single status change.
type StateTransition struct {
	From   JobStatus `json:"from"             db:"from_status"`
	To     JobStatus `json:"to"               db:"to_status"`
	At     time.Time `json:"at"               db:"transitioned_at"`
	Reason string    `json:"reason,omitempty" db:"reason"`
}

// JobResult holds the outcome of a terminal evaluation. Data is the serialized analysis report.
type JobResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// CreateJobRequest represents a request to create a new job.
type CreateJobRequest struct {
	Type      JobType `json:"type"       validate:"required"`
	MissionID string  `json:"mission_id" validate:"required"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	return nil
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Status JobStatus `json:"status"           validate:"required"`
	Reason string    `json:"reason,omitempty" validate:"max=512"`
}

// Validate validates the TransitionRequest fields.
func (r *TransitionRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	return nil
}

// ProgressRequest carries a progress update for a running job.
type ProgressRequest struct {
	Progress *int `json:"progress" validate:"required"`
}

// Validate validates the ProgressRequest fields. Range checks are left to the state machine.
func (r *ProgressRequest) Validate() error {
	return validate.Struct(r)
}

// FailRequest carries the failure message for a job.
type FailRequest struct {
	Error string `json:"error" validate:"required,max=4096"`
}

// Validate validates the FailRequest fields.
func (r *FailRequest) Validate() error {
	return validate.Struct(r)
}

// JobListOptions groups parameters for listing jobs with optional filters.
type JobListOptions struct {
	MissionID *string
	Status    *JobStatus
	Limit     int
	Offset    int
}
