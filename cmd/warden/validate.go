package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and policy file",
	Long: `Load the configuration with environment overrides, validate it, then
load the policy file it names and compile every route.

Nothing is sent to the Warden authority.

Examples:
  warden validate --config /etc/warden/warden.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	policies, err := loadPolicies(cfg)
	if err != nil {
		return err
	}
	routes, err := policies.Routes()
	if err != nil {
		return cli.NewConfigError("policies.file", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "configuration %s is valid\n", cfgFile)
	fmt.Fprintf(out, "policy file %s: %d policies, %d routes\n", cfg.Policies.File, len(policies.Policies), len(routes))
	return nil
}
