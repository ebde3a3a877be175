package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/VihangaMunasinghe/ares-sub001/internal/adapters/reaper"
	"github.com/VihangaMunasinghe/ares-sub001/internal/bootstrap"
	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

func newJobCmd(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and drive job records",
	}
	cmd.AddCommand(
		newJobShowCmd(cmdCtx),
		newJobListCmd(cmdCtx),
		newJobTransitionCmd(cmdCtx),
		newJobFailCmd(cmdCtx),
		newJobResultCmd(cmdCtx),
	)
	return cmd
}

func newJobShowCmd(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a job record with its transition history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), cmdCtx,
				func(ctx context.Context, _ *sql.DB, services bootstrap.ServiceContainer) error {
					rec, err := services.Jobs.Get(ctx, args[0])
					if err != nil {
						return err
					}
					history, err := services.Jobs.Transitions(ctx, args[0])
					if err != nil {
						return err
					}
					rec.Transitions = history
					return writeJSON(cmd.OutOrStdout(), rec)
				})
		},
	}
}

func newJobListCmd(cmdCtx *commandContext) *cobra.Command {
	var (
		missionID string
		status    string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := buildListOptions(missionID, status, limit)
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), cmdCtx,
				func(ctx context.Context, _ *sql.DB, services bootstrap.ServiceContainer) error {
					jobs, err := services.Jobs.List(ctx, opts)
					if err != nil {
						return err
					}
					return printJobs(cmd.OutOrStdout(), jobs)
				})
		},
	}
	cmd.Flags().StringVar(&missionID, "mission", "", "Only list jobs of this mission")
	cmd.Flags().StringVar(&status, "status", "", "Only list jobs in this status")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs to list")
	return cmd
}

func buildListOptions(missionID, status string, limit int) (model.JobListOptions, error) {
	opts := model.JobListOptions{Limit: limit}
	if missionID != "" {
		opts.MissionID = &missionID
	}
	if status != "" {
		var s model.JobStatus
		if err := s.UnmarshalText([]byte(status)); err != nil {
			return opts, err
		}
		opts.Status = &s
	}
	return opts, nil
}

func newJobTransitionCmd(cmdCtx *commandContext) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "transition <id> <status>",
		Short: "Move a job to another status through the state machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := model.TransitionRequest{Reason: reason}
			if err := req.Status.UnmarshalText([]byte(args[1])); err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
			}
			return withServices(cmd.Context(), cmdCtx,
				func(ctx context.Context, _ *sql.DB, services bootstrap.ServiceContainer) error {
					rec, err := services.Jobs.RequestTransition(ctx, args[0], req.Status, req.Reason)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), rec)
				})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the transition")
	return cmd
}

func newJobFailCmd(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fail <id> <message>",
		Short: "Mark a running job as failed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), cmdCtx,
				func(ctx context.Context, _ *sql.DB, services bootstrap.ServiceContainer) error {
					rec, err := services.Jobs.Fail(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), rec)
				})
		},
	}
}

func newJobResultCmd(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit-result <id> <file|->",
		Short: "Submit a raw solver result for a running job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), cmdCtx,
				func(ctx context.Context, _ *sql.DB, services bootstrap.ServiceContainer) error {
					rec, report, err := services.Jobs.SubmitResult(ctx, args[0], raw)
					if err != nil {
						if rec != nil {
							return errors.Join(err, writeJSON(cmd.OutOrStdout(), rec))
						}
						return err
					}
					return writeJSON(cmd.OutOrStdout(), map[string]any{"job": rec, "report": report})
				})
		},
	}
}

func newReapCmd(cmdCtx *commandContext) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Cancel pending or running jobs that stopped receiving updates (one sweep)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := cmdCtx.Config.Reaper
			if maxAge > 0 {
				cfg.MaxAge = maxAge
			}
			return withServices(cmd.Context(), cmdCtx,
				func(ctx context.Context, db *sql.DB, services bootstrap.ServiceContainer) error {
					runner, err := reaper.NewRunner(reaper.RunnerOptions{
						DB:      db,
						Jobs:    services.Jobs,
						Repo:    services.JobRepo,
						Config:  cfg,
						Metrics: services.Observability.Metrics,
						Logger:  cmdCtx.Logger,
					})
					if err != nil {
						return err
					}
					res, err := runner.Sweep(ctx)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d stale jobs (%d conflicts)\n",
						res.Cancelled, res.Conflicts)
					return err
				})
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Override REAPER_MAX_AGE for this sweep")
	return cmd
}

func printJobs(w io.Writer, jobs []*model.JobRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tPROGRESS\tMISSION\tUPDATED"); err != nil {
		return err
	}
	for _, j := range jobs {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			j.ID, j.Type, j.Status, j.Progress, j.MissionID, j.UpdatedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
