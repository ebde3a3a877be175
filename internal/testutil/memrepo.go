package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// MemJobRepo is an in-memory JobRepository with the same compare-and-set rules as the Postgres one.
// It backs service and handler tests that need real lifecycle behavior without a database.
type MemJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]*model.JobRecord
	history map[string][]model.StateTransition
	// Loaded, when set, receives a non-blocking signal after every GetByID snapshot.
	Loaded chan struct{}
}

// NewMemJobRepo returns an empty repository.
func NewMemJobRepo() *MemJobRepo {
	return &MemJobRepo{
		jobs:    make(map[string]*model.JobRecord),
		history: make(map[string][]model.StateTransition),
	}
}

// Put stores rec as is, keeping its timestamps.
func (r *MemJobRepo) Put(rec *model.JobRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[rec.ID] = rec.Clone()
}

func (r *MemJobRepo) Create(_ context.Context, rec *model.JobRecord) (*model.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := rec.Clone()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now
	r.jobs[out.ID] = out
	return out.Clone(), nil
}

func (r *MemJobRepo) GetByID(_ context.Context, id string) (*model.JobRecord, error) {
	r.mu.Lock()
	rec, ok := r.jobs[id]
	var out *model.JobRecord
	if ok {
		out = rec.Clone()
	}
	r.mu.Unlock()

	if r.Loaded != nil {
		select {
		case r.Loaded <- struct{}{}:
		default:
		}
	}
	if !ok {
		return nil, model.ErrJobNotFound
	}
	return out, nil
}

func (r *MemJobRepo) List(_ context.Context, opts model.JobListOptions) ([]*model.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.JobRecord, 0, len(r.jobs))
	for _, rec := range r.jobs {
		if opts.Status != nil && rec.Status != *opts.Status {
			continue
		}
		if opts.MissionID != nil && rec.MissionID != *opts.MissionID {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemJobRepo) Update(_ context.Context, params core.UpdateJobParams) (*model.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.jobs[params.Record.ID]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	if cur.Status != params.ExpectStatus {
		return nil, core.ErrStaleWrite
	}
	if params.Transition == nil && cur.Progress > params.Record.Progress {
		return nil, core.ErrStaleWrite
	}
	next := params.Record.Clone()
	next.Transitions = nil
	next.UpdatedAt = time.Now().UTC()
	r.jobs[next.ID] = next
	if params.Transition != nil {
		r.history[next.ID] = append(r.history[next.ID], *params.Transition)
	}
	return next.Clone(), nil
}

func (r *MemJobRepo) ListTransitions(_ context.Context, jobID string) ([]model.StateTransition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.StateTransition{}, r.history[jobID]...), nil
}

func (r *MemJobRepo) ListStale(_ context.Context, params core.ListStaleJobsParams) ([]*model.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.JobRecord
	for _, rec := range r.jobs {
		if rec.Status.Terminal() || !rec.UpdatedAt.Before(params.Before) {
			continue
		}
		for _, s := range params.Statuses {
			if rec.Status == s {
				out = append(out, rec.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if params.BatchSize > 0 && len(out) > params.BatchSize {
		out = out[:params.BatchSize]
	}
	return out, nil
}

var _ core.JobRepository = (*MemJobRepo)(nil)
