// Package cmd defines and implements the CLI commands for the
// runway-crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runway-crawler",
		Short: "A resumable crawler for runway show archives.",
		Long: `runway-crawler walks the season/designer/look hierarchy of a runway
show archive with a pool of authenticated headless browsers. Crawl
state is checkpointed after every look, so an interrupted run resumes
where it stopped instead of starting over.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default uses built-in defaults plus RUNWAY_* env vars)")

	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	// A .env file is optional; env vars win when both are present.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
