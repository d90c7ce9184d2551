package cli

import (
	"github.com/spf13/cobra"

	"mandi-pricecheck/internal/app"
)

var (
	exportWindow     windowFlags
	exportPNGPath    string
	exportCSVPath    string
	exportMaxRecords int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the integrity window slice as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		window, err := exportWindow.options()
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			Window:     window,
			PNGPath:    exportPNGPath,
			CSVPath:    exportCSVPath,
			MaxRecords: exportMaxRecords,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportWindow.register(exportCmd.Flags())
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart of modal prices")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxRecords, "max-records", 0, "Maximum records to export (defaults to config)")
}
