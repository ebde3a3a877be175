package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/VihangaMunasinghe/ares-sub001/internal/bootstrap"
	"github.com/VihangaMunasinghe/ares-sub001/internal/data"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

const dateLayout = "2006-01-02"

type missionFlags struct {
	id        string
	name      string
	weeks     int
	crewHours float64
	start     string
	end       string
}

func newMissionCmd(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mission",
		Short: "Register and inspect missions",
	}
	cmd.AddCommand(newMissionPutCmd(cmdCtx), newMissionShowCmd(cmdCtx))
	return cmd
}

func newMissionPutCmd(cmdCtx *commandContext) *cobra.Command {
	var f missionFlags
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Create or replace a mission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mission, err := f.mission()
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), cmdCtx,
				func(ctx context.Context, db *sql.DB, _ bootstrap.ServiceContainer) error {
					if err := data.NewMissionRepo(db).Upsert(ctx, mission); err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), mission)
				})
		},
	}
	cmd.Flags().StringVar(&f.id, "id", "", "Mission id (required)")
	cmd.Flags().StringVar(&f.name, "name", "", "Display name")
	cmd.Flags().IntVar(&f.weeks, "weeks", 0, "Mission duration in weeks; bounds weekApplied indices")
	cmd.Flags().Float64Var(&f.crewHours, "crew-hours", 0, "Crew hours available per week")
	cmd.Flags().StringVar(&f.start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "End date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (f missionFlags) mission() (*model.Mission, error) {
	id := strings.TrimSpace(f.id)
	if id == "" {
		return nil, errors.New("--id is required")
	}
	if f.weeks < 0 {
		return nil, errors.New("--weeks must be non-negative")
	}
	if f.crewHours < 0 {
		return nil, errors.New("--crew-hours must be non-negative")
	}
	start, err := parseDate("start", f.start)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end", f.end)
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, errors.New("--end must not be before --start")
	}
	name := strings.TrimSpace(f.name)
	if name == "" {
		name = id
	}
	return &model.Mission{
		ID:               id,
		Name:             name,
		DurationWeeks:    f.weeks,
		CrewHoursPerWeek: f.crewHours,
		StartDate:        start,
		EndDate:          end,
	}, nil
}

func parseDate(flag, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return &t, nil
}

func newMissionShowCmd(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), cmdCtx,
				func(ctx context.Context, _ *sql.DB, services bootstrap.ServiceContainer) error {
					mission, err := services.Missions.GetByID(ctx, args[0])
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), mission)
				})
		},
	}
}
