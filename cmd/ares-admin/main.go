// Command ares-admin runs maintenance and inspection tasks against the ares database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VihangaMunasinghe/ares-sub001/config"
	"github.com/VihangaMunasinghe/ares-sub001/internal/bootstrap"
)

// commandContext carries what every subcommand needs. It is filled in by the root command's
// PersistentPreRunE.
type commandContext struct {
	Logger *slog.Logger
	Config config.AppConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func newRootCmd() *cobra.Command {
	cmdCtx := &commandContext{}
	root := &cobra.Command{
		Use:           "ares-admin",
		Short:         "Administer the ares job lifecycle service",
		Long:          "ares-admin applies migrations, registers missions, drives job transitions and analyzes solver results offline.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			cmdCtx.Config = cfg
			cmdCtx.Logger = bootstrap.NewLogger(cmd.ErrOrStderr(), cfg.Observability.Log)
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(cmdCtx),
		newAnalyzeCmd(cmdCtx),
		newJobCmd(cmdCtx),
		newMissionCmd(cmdCtx),
		newReapCmd(cmdCtx),
	)
	return root
}
