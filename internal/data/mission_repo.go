package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/VihangaMunasinghe/ares-sub001/internal/data/pgxutil"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
	apperrors "github.com/VihangaMunasinghe/ares-sub001/internal/errors"
)

// MissionRepo reads missions. Missions are owned by the planning system; Upsert exists for
// seeding and tests.
type MissionRepo struct {
	DB *sql.DB
}

// NewMissionRepo creates a MissionRepo.
func NewMissionRepo(db *sql.DB) *MissionRepo {
	return &MissionRepo{DB: db}
}

const missionColumns = `id, name, duration_weeks, crew_hours_per_week, start_date, end_date`

// GetByID looks a mission up by id.
func (r *MissionRepo) GetByID(ctx context.Context, id string) (*model.Mission, error) {
	var m *model.Mission
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		m, err = pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Mission])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrMissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", apperrors.MapDBError(err))
	}
	return m, nil
}

// Upsert inserts or replaces a mission.
func (r *MissionRepo) Upsert(ctx context.Context, m *model.Mission) error {
	if m == nil || m.ID == "" {
		return errors.New("mission with id is required")
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO missions (`+missionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    duration_weeks = EXCLUDED.duration_weeks,
		    crew_hours_per_week = EXCLUDED.crew_hours_per_week,
		    start_date = EXCLUDED.start_date,
		    end_date = EXCLUDED.end_date`,
		m.ID, m.Name, m.DurationWeeks, m.CrewHoursPerWeek, m.StartDate, m.EndDate,
	)
	if err != nil {
		return fmt.Errorf("upsert mission: %w", apperrors.MapDBError(err))
	}
	return nil
}
