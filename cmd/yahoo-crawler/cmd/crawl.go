package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the comment tree of every pending link",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := rt.launch(cmd.Context())
		if err != nil {
			return err
		}
		return crawl(cmd, b)
	},
}

func crawl(cmd *cobra.Command, b domain.Browser) error {
	orch, err := rt.orchestrator(b)
	if err != nil {
		return err
	}
	summary, err := orch.Run(cmd.Context())
	renderSummary(cmd.OutOrStdout(), summary)
	return err
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}
