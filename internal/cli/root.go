// Package cli implements the shortload command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/shortload/internal/logger"
)

var version = "0.1.0"

// ErrThresholdsFailed is returned by run when the test completed but at
// least one threshold did not pass.
var ErrThresholdsFailed = errors.New("thresholds failed")

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "shortload",
	Short:   "Synthetic traffic generator for URL shortener services",
	Version: version,
	Long: `shortload simulates users of a URL shortener: they create short links,
follow redirects and read click statistics, with weighted actions and
think time between them. Results are checked per response and reported
per endpoint.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(logLevel(cmd, ""))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// logLevel resolves the log level: the flag, then SHORTLOAD_LOG_LEVEL, then
// fallback, then info.
func logLevel(cmd *cobra.Command, fallback string) string {
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		return f.Value.String()
	}
	if env := os.Getenv("SHORTLOAD_LOG_LEVEL"); env != "" {
		return env
	}
	if fallback != "" {
		return fallback
	}
	return "info"
}

// Execute runs the root command. Errors other than failed thresholds are
// printed to stderr.
func Execute() error {
	err := RootCmd.Execute()
	if err != nil && !errors.Is(err, ErrThresholdsFailed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	RootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(mockServerCmd)
	RootCmd.AddCommand(profilesCmd)
}
