package cmd

import (
	"github.com/spf13/cobra"
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Discover links, then crawl them",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := rt.launch(cmd.Context())
		if err != nil {
			return err
		}
		res, err := rt.discovery(b).Run(cmd.Context())
		renderDiscovery(cmd.OutOrStdout(), res)
		if err != nil {
			return err
		}
		return crawl(cmd, b)
	},
}

func init() {
	rootCmd.AddCommand(allCmd)
}
