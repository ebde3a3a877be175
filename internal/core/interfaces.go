package core

import (
	"context"
	"errors"
	"time"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// ErrStaleWrite is returned by JobRepository.Update when the stored record no longer matches the
// state the write was computed from.
var ErrStaleWrite = errors.New("job was modified concurrently")

// JobRepository defines the interface for job record persistence.
type JobRepository interface {
	Create(ctx context.Context, rec *model.JobRecord) (*model.JobRecord, error)
	GetByID(ctx context.Context, id string) (*model.JobRecord, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.JobRecord, error)
	// Update writes rec only while the stored status still equals params.ExpectStatus, appending
	// params.Transition (when set) in the same transaction.
	Update(ctx context.Context, params UpdateJobParams) (*model.JobRecord, error)
	ListTransitions(ctx context.Context, jobID string) ([]model.StateTransition, error)
	// ListStale returns non-terminal jobs in the given statuses not updated since before.
	ListStale(ctx context.Context, params ListStaleJobsParams) ([]*model.JobRecord, error)
}

// UpdateJobParams groups parameters for JobRepository.Update.
type UpdateJobParams struct {
	Record       *model.JobRecord
	ExpectStatus model.JobStatus
	// Transition is nil for progress-only writes. Those additionally require the stored progress
	// to be no greater than the new value.
	Transition *model.StateTransition
}

// ListStaleJobsParams groups parameters for JobRepository.ListStale.
type ListStaleJobsParams struct {
	Statuses  []model.JobStatus
	Before    time.Time
	BatchSize int
}

// MissionRepository is the read-only mission lookup.
type MissionRepository interface {
	GetByID(ctx context.Context, id string) (*model.Mission, error)
}
