package cmd

import (
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scroll the forum listing and store every thread link found",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := rt.launch(cmd.Context())
		if err != nil {
			return err
		}
		res, err := rt.discovery(b).Run(cmd.Context())
		renderDiscovery(cmd.OutOrStdout(), res)
		return err
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
