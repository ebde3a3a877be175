package data

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// collectJobFromRows collects a single job from pgx rows.
func collectJobFromRows(rows pgx.Rows) (*model.JobRecord, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	rec, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	result                 []byte
	errMsg                 sql.NullString
	startedAt, completedAt sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, rec *model.JobRecord) error {
	return scanner.Scan(
		&rec.ID,
		&rec.Type,
		&rec.Status,
		&rec.Progress,
		&rec.MissionID,
		&d.result,
		&d.errMsg,
		&rec.CreatedAt,
		&d.startedAt,
		&d.completedAt,
		&rec.UpdatedAt,
	)
}

func (d *jobRowData) apply(rec *model.JobRecord) error {
	if len(d.result) > 0 {
		var res model.JobResult
		if err := json.Unmarshal(d.result, &res); err != nil {
			return fmt.Errorf("decode job result: %w", err)
		}
		rec.Result = &res
	}
	rec.Error = cloneNullableString(d.errMsg)
	rec.StartedAt = cloneNullableTime(d.startedAt)
	rec.CompletedAt = cloneNullableTime(d.completedAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return nil
}

func scanJobFromRow(scanner jobRowScanner) (*model.JobRecord, error) {
	rec := &model.JobRecord{}
	var data jobRowData
	if err := data.scanInto(scanner, rec); err != nil {
		return nil, err
	}
	if err := data.apply(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
