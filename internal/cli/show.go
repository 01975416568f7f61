package cli

import (
	"github.com/spf13/cobra"

	"stratum/internal/app"
)

var showQuery string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Poll once and print the price cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			Query: showQuery,
		}

		return getApp().Show(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showQuery, "query", "", "Filter cards by symbol or name")
}
