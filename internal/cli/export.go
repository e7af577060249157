package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scanledger/scanledger/internal/export"
)

var (
	exportFrom string
	exportTo   string
	exportOut  string
)

// NewExportCommand creates the XLSX export command.
func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded receipts to an XLSX workbook",
		RunE:  runExport,
	}
	cmd.Flags().StringVar(&exportFrom, "from", "", "from date YYYY-MM-DD")
	cmd.Flags().StringVar(&exportTo, "to", "", "to date YYYY-MM-DD")
	cmd.Flags().StringVar(&exportOut, "out", "receipts.xlsx", "output file path")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := NewLogger()

	app, err := BuildApp(ctx, cfgPath, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	from, err := parseDateFlag(exportFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag(exportTo)
	if err != nil {
		return err
	}

	svc := export.NewService(app.Store, logger)
	data, err := svc.ExportReceiptsXLSX(ctx, from, to)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", exportOut, len(data))
	return nil
}
