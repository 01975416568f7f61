package cli

import (
	"github.com/spf13/cobra"

	"stratum/internal/app"
	"stratum/internal/render"
)

var (
	simulateID      string
	simulatePrices  []string
	simulatePNGPath string
	simulateSize    render.Size
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a price sequence into candles without contacting the feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			ID:      simulateID,
			Prices:  simulatePrices,
			PNGPath: simulatePNGPath,
			Size:    simulateSize,
		}

		return getApp().Simulate(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateID, "id", "SIM", "Instrument identifier used for the replay")
	simulateCmd.Flags().StringSliceVar(&simulatePrices, "prices", nil, "Comma separated price sequence, one per tick")
	simulateCmd.Flags().StringVar(&simulatePNGPath, "png", "", "Optional path to write the resulting chart")
	addSizeFlags(simulateCmd, &simulateSize)
}
