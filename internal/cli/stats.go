package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scanledger/scanledger/constants"
)

// NewStatsCommand creates the recorded-data summary command.
func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize recorded receipts and error history",
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := NewLogger()

	app, err := BuildApp(ctx, cfgPath, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	recs, err := app.Store.ListReceipts(ctx, time.Time{}, time.Time{})
	if err != nil {
		return err
	}

	// seed the full status vocabulary so the report shape is stable
	byStatus := map[constants.Status]int{
		constants.StatusUnprocessed: 0,
		constants.StatusProcessed:   0,
		constants.StatusNeedsReview: 0,
		constants.StatusError:       0,
	}
	byCategory := make(map[constants.Category]int)
	var total float64
	var confidenceSum float64
	for _, r := range recs {
		byStatus[r.Status]++
		byCategory[r.Category]++
		if r.Total != nil {
			total += *r.Total
		}
		confidenceSum += r.Confidence
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "receipts: %d\n", len(recs))
	if len(recs) > 0 {
		fmt.Fprintf(out, "  total amount: %.0f\n", total)
		fmt.Fprintf(out, "  avg confidence: %.2f\n", confidenceSum/float64(len(recs)))
	}
	for status, n := range byStatus {
		fmt.Fprintf(out, "  %s: %d\n", status, n)
	}
	if len(byCategory) > 0 {
		fmt.Fprintln(out, "by category:")
		for cat, n := range byCategory {
			fmt.Fprintf(out, "  %s: %d\n", cat, n)
		}
	}

	counts, err := app.Store.ErrorEventCounts(ctx)
	if err != nil {
		return err
	}
	if len(counts) > 0 {
		fmt.Fprintln(out, "error events:")
		for kind, n := range counts {
			fmt.Fprintf(out, "  %s: %d\n", kind, n)
		}
	}
	return nil
}
