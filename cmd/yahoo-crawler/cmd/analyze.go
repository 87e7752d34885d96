package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jcfangc/yahoo-crawler/internal/analyzer"
)

var (
	analyzeOutput string
	analyzeTop    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Count word frequencies across stored comments and write a CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		stopWords, err := analyzer.LoadStopWords(rt.cfg.Analyze.StopWordsFile)
		if err != nil {
			return err
		}
		out := rt.cfg.Analyze.OutputCSV
		if analyzeOutput != "" {
			out = analyzeOutput
		}
		counts, err := analyzer.New(rt.comments, stopWords, rt.log).Run(cmd.Context(), out)
		if err != nil {
			return err
		}
		renderWords(cmd.OutOrStdout(), counts, analyzeTop)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d words to %s\n", len(counts), out)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "CSV output path (overrides config)")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 20, "number of words to print")
	rootCmd.AddCommand(analyzeCmd)
}
