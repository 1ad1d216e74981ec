package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/cli"
)

// defaultConfigFile is read when --config is not given. It may be absent.
const defaultConfigFile = "config.yaml"

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "jarvish",
	Short: "Jarvish - compliant content delivery for financial advisors",
	Long: `Jarvish checks advisor-authored promotional content against financial
promotion rules before it is delivered to subscribers.

It provides:
  - Prohibited term, disclaimer and identifier checks with auto-fix
  - Semantic risk scoring through an external analysis service
  - An audit trail with checksummed compliance exports
  - Prioritized, rate-limited delivery with a durable daily quota`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the command's exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
