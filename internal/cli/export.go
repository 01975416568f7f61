package cli

import (
	"github.com/spf13/cobra"

	"stratum/internal/app"
)

var (
	exportID      string
	exportSVGPath string
	exportPNGPath string
	exportCSVPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored trend as sparkline SVG/PNG and/or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			ID:      exportID,
			SVGPath: exportSVGPath,
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportID, "id", "", "Instrument identifier")
	exportCmd.Flags().StringVar(&exportSVGPath, "svg", "", "Path to write SVG sparkline")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG sparkline")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
