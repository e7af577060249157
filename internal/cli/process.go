package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewProcessCommand creates the one-shot batch command.
func NewProcessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process every file waiting in the incoming folder",
		RunE:  runProcess,
	}
	return cmd
}

func runProcess(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := NewLogger()

	app, err := BuildApp(ctx, cfgPath, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	tasks, err := app.Source.ListNewFiles(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to process")
		return nil
	}

	report := app.Orchestrator.Run(ctx, tasks)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "processed %d file(s) in %s\n", len(tasks), report.Elapsed.Round(10*time.Millisecond))
	fmt.Fprintf(out, "  success: %d  errors: %d  retried: %d\n",
		report.SuccessCount, report.ErrorCount, report.RetriedCount)
	for _, id := range report.Unresolved {
		fmt.Fprintf(out, "  UNRESOLVED: %s\n", id)
	}
	for _, insight := range app.Monitor.Insights() {
		fmt.Fprintf(out, "  note: %s\n", insight)
	}

	stats := app.Orchestrator.ErrLog().Snapshot()
	if stats.Total > 0 {
		fmt.Fprintf(out, "  error events: %d\n", stats.Total)
		for kind, n := range stats.ByKind {
			fmt.Fprintf(out, "    %s: %d\n", kind, n)
		}
	}
	return nil
}
