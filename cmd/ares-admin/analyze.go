package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/analytics"
)

type analyzeOptions struct {
	maxWeek int
	metrics map[string]string
	summary bool
}

func newAnalyzeCmd(cmdCtx *commandContext) *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file|->",
		Short: "Analyze a raw solver result without touching the database",
		Long: "Runs ingestion, aggregation, summary reconciliation and chart projection over a raw " +
			"result file and prints the report. Use - to read from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			metrics := cmdCtx.Config.Analytics.Metrics
			if len(opts.metrics) > 0 {
				metrics = opts.metrics
			}
			analyzer, err := analytics.NewAnalyzer(analytics.AnalyzerOptions{
				ChangeTolerance:  cmdCtx.Config.Analytics.ChangeTolerance,
				SummaryTolerance: cmdCtx.Config.Analytics.SummaryTolerance,
				Metrics:          metrics,
			})
			if err != nil {
				return err
			}

			report, err := analyzer.Analyze(raw, opts.maxWeek)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", args[0], err)
			}
			if opts.summary {
				return printReportSummary(cmd.OutOrStdout(), report)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().IntVar(&opts.maxWeek, "max-week", 0, "Mission length in weeks; week indices beyond it are dropped (0 disables)")
	cmd.Flags().StringToStringVar(&opts.metrics, "metric", nil, "Display metric as name=jmespath, overrides ANALYTICS_METRICS")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print a human readable summary instead of the JSON report")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func printReportSummary(w io.Writer, report *analytics.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	computed := report.Reconciliation.Computed
	lines := []string{
		fmt.Sprintf("Changes:\t%d\n", len(report.Diff.MaterialChanges)),
		fmt.Sprintf("Skipped:\t%d\n", len(report.Skipped)),
		fmt.Sprintf("Corrections:\t%d\n", len(report.Corrections)),
		fmt.Sprintf("Mass saved:\t%g\n", computed.TotalMassSaved),
		fmt.Sprintf("Items affected:\t%d\n", computed.TotalItemsAffected),
		fmt.Sprintf("Recycling tasks:\t%d\n", computed.RecyclingTasksAdded),
		fmt.Sprintf("Safety improvements:\t%d\n", computed.SafetyImprovements),
		fmt.Sprintf("Summary consistent:\t%t\n", report.Reconciliation.Consistent()),
	}
	for _, line := range lines {
		if _, err := io.WriteString(tw, line); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warn := range report.Reconciliation.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", warn.Error()); err != nil {
			return err
		}
	}
	for _, skipped := range report.Skipped {
		if _, err := fmt.Fprintf(w, "skipped: %s\n", skipped.Error()); err != nil {
			return err
		}
	}
	for _, m := range report.Metrics {
		if _, err := fmt.Fprintf(w, "metric %s: %d%%\n", m.Name, m.Value); err != nil {
			return err
		}
	}
	return nil
}
