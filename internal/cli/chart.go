package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stratum/internal/app"
	"stratum/internal/render"
)

var (
	chartID      string
	chartTicks   int
	chartPNGPath string
	chartSize    render.Size
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Poll one instrument into candles and write the chart as PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		if chartID == "" {
			return fmt.Errorf("--id is required")
		}
		if chartTicks <= 0 {
			return fmt.Errorf("--ticks must be greater than zero")
		}
		if chartPNGPath == "" {
			return fmt.Errorf("--png is required")
		}

		opts := app.ChartOptions{
			ID:      chartID,
			Ticks:   chartTicks,
			PNGPath: chartPNGPath,
			Size:    chartSize,
		}

		return getApp().Chart(cmd.Context(), opts)
	},
}

func init() {
	chartCmd.Flags().StringVar(&chartID, "id", "", "Instrument identifier")
	chartCmd.Flags().IntVar(&chartTicks, "ticks", 10, "Number of candles to collect before writing")
	chartCmd.Flags().StringVar(&chartPNGPath, "png", "", "Path to write PNG chart")
	addSizeFlags(chartCmd, &chartSize)
}

// addSizeFlags binds the host container size flags; zero means the configured default.
func addSizeFlags(cmd *cobra.Command, size *render.Size) {
	cmd.Flags().Float64Var(&size.Width, "width", 0, "Chart width in CSS pixels (defaults to config)")
	cmd.Flags().Float64Var(&size.Height, "height", 0, "Chart height in CSS pixels (defaults to config)")
	cmd.Flags().Float64Var(&size.DPR, "dpr", 0, "Device pixel ratio (defaults to config)")
}
