package cli

import (
	"github.com/spf13/cobra"
)

var runListen string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the price feed and serve chart views",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		if runListen != "" {
			a.Config.Server.Listen = runListen
		}
		return a.Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&runListen, "listen", "", "Address for the view server (overrides server.listen)")
}
