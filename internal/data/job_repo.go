package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/data/pgxutil"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
	apperrors "github.com/VihangaMunasinghe/ares-sub001/internal/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo persists job records and their transition history in Postgres.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "job_repo"),
	}
}

const jobColumns = `
  id,
  type,
  status,
  progress,
  mission_id,
  result,
  error,
  created_at,
  started_at,
  completed_at,
  updated_at
`

// Create inserts rec as a new job. An empty ID is assigned a random UUID; timestamps default to now.
func (r *JobRepo) Create(ctx context.Context, rec *model.JobRecord) (*model.JobRecord, error) {
	if rec == nil {
		return nil, errors.New("job record is required")
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := r.timeProvider.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	result, err := marshalResult(rec.Result)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO jobs (id, type, status, progress, mission_id, result, error, created_at, started_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + jobColumns

	var created *model.JobRecord
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query,
			id, rec.Type, rec.Status, rec.Progress, rec.MissionID, result, rec.Error,
			createdAt, rec.StartedAt, rec.CompletedAt, now,
		)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		created, qerr = collectJobFromRows(rows)
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", apperrors.MapDBError(err))
	}
	return created, nil
}

// GetByID retrieves a job by its ID. Transition history is loaded separately via ListTransitions.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.JobRecord, error) {
	var rec *model.JobRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		rec, err = collectJobFromRows(rows)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", apperrors.MapDBError(err))
	}
	return rec, nil
}

// List returns jobs newest first, optionally filtered by mission and status.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.JobRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset := max(opts.Offset, 0)

	b := &jobFilterQueryBuilder{query: `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`, argIdx: 1}
	if opts.MissionID != nil && *opts.MissionID != "" {
		b.addFilter("mission_id", *opts.MissionID)
	}
	if opts.Status != nil {
		b.addFilter("status", string(*opts.Status))
	}
	b.query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", b.argIdx, b.argIdx+1)
	b.args = append(b.args, limit, offset)

	return r.queryJobs(ctx, b.query, b.args...)
}

// ListStale returns jobs in one of params.Statuses whose last update is older than params.Before.
func (r *JobRepo) ListStale(ctx context.Context, params core.ListStaleJobsParams) ([]*model.JobRecord, error) {
	if len(params.Statuses) == 0 {
		return nil, nil
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultListLimit
	}
	statuses := make([]string, len(params.Statuses))
	for i, s := range params.Statuses {
		statuses[i] = string(s)
	}
	return r.queryJobs(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3`,
		statuses, params.Before.UTC(), batch,
	)
}

func (r *JobRepo) queryJobs(ctx context.Context, query string, args ...any) ([]*model.JobRecord, error) {
	out := []*model.JobRecord{}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, scanErr := scanJobFromRow(rows)
			if scanErr != nil {
				return scanErr
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Update writes the mutable fields of params.Record guarded by the expected status, and records
// params.Transition in the same transaction. A write that matches no row returns ErrJobNotFound
// when the job is gone and core.ErrStaleWrite otherwise.
func (r *JobRepo) Update(ctx context.Context, params core.UpdateJobParams) (*model.JobRecord, error) {
	rec := params.Record
	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return nil, errors.New("job record with id is required")
	}
	result, err := marshalResult(rec.Result)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE jobs
		SET status = $2,
		    progress = $3,
		    result = $4,
		    error = $5,
		    started_at = $6,
		    completed_at = $7,
		    updated_at = $8
		WHERE id = $1 AND status = $9`
	if params.Transition == nil {
		query += ` AND progress <= $3`
	}
	query += `
		RETURNING ` + jobColumns

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = r.timeProvider.Now()
	}
	args := []any{
		rec.ID, rec.Status, rec.Progress, result, rec.Error,
		rec.StartedAt, rec.CompletedAt, updatedAt.UTC(), params.ExpectStatus,
	}

	var updated *model.JobRecord
	txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, qerr := tx.Query(ctx, query, args...)
			if qerr != nil {
				return qerr
			}
			updated, qerr = collectJobFromRows(rows)
			rows.Close()
			if errors.Is(qerr, pgx.ErrNoRows) {
				return r.missedUpdate(ctx, tx, rec.ID)
			}
			if qerr != nil {
				return qerr
			}
			if params.Transition == nil {
				return nil
			}
			return insertTransition(ctx, tx, rec.ID, *params.Transition)
		},
	})
	if txErr != nil {
		if errors.Is(txErr, model.ErrJobNotFound) || errors.Is(txErr, core.ErrStaleWrite) {
			return nil, txErr
		}
		return nil, fmt.Errorf("update job: %w", apperrors.MapDBError(txErr))
	}
	return updated, nil
}

func (r *JobRepo) missedUpdate(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return model.ErrJobNotFound
	}
	r.logger.DebugContext(ctx, "job update lost compare-and-set", "job_id", id)
	return core.ErrStaleWrite
}

func insertTransition(ctx context.Context, tx pgx.Tx, jobID string, tr model.StateTransition) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO job_transitions (job_id, from_status, to_status, reason, transitioned_at)
		VALUES ($1, $2, $3, $4, $5)`,
		jobID, tr.From, tr.To, tr.Reason, tr.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ListTransitions returns a job's transition history, oldest first.
func (r *JobRepo) ListTransitions(ctx context.Context, jobID string) ([]model.StateTransition, error) {
	var out []model.StateTransition
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT from_status, to_status, transitioned_at, reason
			FROM job_transitions
			WHERE job_id = $1
			ORDER BY id ASC`, jobID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.StateTransition])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", apperrors.MapDBError(err))
	}
	if out == nil {
		out = []model.StateTransition{}
	}
	return out, nil
}

type jobFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *jobFilterQueryBuilder) addFilter(column string, value any) {
	b.query += fmt.Sprintf(" AND %s = $%d", column, b.argIdx)
	b.args = append(b.args, value)
	b.argIdx++
}

func marshalResult(res *model.JobResult) ([]byte, error) {
	if res == nil {
		return nil, nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	return b, nil
}
