package cli

import (
	"github.com/spf13/cobra"
)

var cfgPath string

// NewRootCommand builds the scanledger command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "scanledger",
		Short:         "Extract, verify, and record scanned receipts",
		Long:          "scanledger runs scanned receipt files (PDF and images) through LLM and OCR extraction,\nparses the fields, categorizes each expense, and records the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")

	root.AddCommand(NewProcessCommand())
	root.AddCommand(NewWatchCommand())
	root.AddCommand(NewExportCommand())
	root.AddCommand(NewStatsCommand())
	return root
}
