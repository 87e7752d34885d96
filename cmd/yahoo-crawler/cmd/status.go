package cmd

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many links are in each journal state",
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := rt.repo.Counts(cmd.Context())
		if err != nil {
			return err
		}
		exhausted, err := rt.repo.Exhausted(cmd.Context(), rt.cfg.Crawl.MaxAttempts)
		if err != nil {
			return err
		}
		renderCounts(cmd.OutOrStdout(), counts, exhausted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
