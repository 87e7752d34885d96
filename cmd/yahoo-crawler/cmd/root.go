package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jcfangc/yahoo-crawler/internal/config"
)

var (
	configPath string
	dbPath     string
	logLevel   string
)

// rt is the runtime built for the running subcommand.
var rt *app

var rootCmd = &cobra.Command{
	Use:           "yahoo-crawler",
	Short:         "yahoo-crawler discovers forum threads, crawls their comment trees and counts words.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath, dbPath, logLevel)
		if err != nil {
			return err
		}
		rt = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rt != nil {
			rt.close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if rt != nil {
			rt.close()
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
