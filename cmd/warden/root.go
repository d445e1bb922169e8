package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - policy enforcement proxy",
	Long: `Warden enforces usage policies held by a remote Warden authority.

It keeps a local cache of usage values and suspensions, pushes usage to the
authority every minute, pulls suspensions back and answers requests from
suspended users with 401 Unauthorized without contacting the upstream.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with its status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "warden.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
