package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/warden"
	"mercator-hq/warden/pkg/warden/policyfile"
	"mercator-hq/warden/pkg/warden/types"
)

var policyFlags struct {
	output string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and synchronize declared policies",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the policies declared in the policy file",
	RunE:  listPolicies,
}

var policySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile declared policies with the authority once",
	Long: `Log in to the Warden authority, create or update every declared policy,
print the assigned policy IDs and log out.

No usage is pushed and no suspensions are enforced.`,
	RunE: syncPolicies,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policySyncCmd)

	policyCmd.PersistentFlags().StringVarP(&policyFlags.output, "output", "o", "text", "output format: text, json, yaml")
}

func listPolicies(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(policyFlags.output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := loadPolicies(cfg)
	if err != nil {
		return err
	}

	table := cli.NewTable("SERVICE", "NAME", "TRIGGER", "THRESHOLDS", "USERS", "ROUTES")
	for _, e := range f.Policies {
		table.Append(
			e.Service,
			e.Name,
			string(e.TriggerType)+" "+string(e.Aggregator),
			formatThresholds(e.Thresholds),
			strconv.Itoa(len(e.Users)),
			formatRoutes(e.Routes),
		)
	}
	return cli.NewFormatter(format).Write(cmd.OutOrStdout(), table)
}

func syncPolicies(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(policyFlags.output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	f, err := loadPolicies(cfg)
	if err != nil {
		return err
	}

	rc, err := newRemote(&cfg.Warden, logger, nil)
	if err != nil {
		return cli.NewConfigError("warden", err)
	}
	defer rc.Close()

	client, err := warden.New(rc, clientConfig(cfg), warden.WithLogger(logger))
	if err != nil {
		return cli.NewConfigError("warden", err)
	}
	synced, err := client.SyncPolicies(cmd.Context(), f.Declared())
	if err != nil {
		return cli.NewCommandError("policy sync", err)
	}

	table := cli.NewTable("ID", "SERVICE", "NAME")
	for _, p := range synced {
		id, _ := p.PolicyID()
		table.Append(strconv.FormatInt(id, 10), p.Service, p.Name)
	}
	return cli.NewFormatter(format).Write(cmd.OutOrStdout(), table)
}

func formatThresholds(thresholds []float64) string {
	parts := make([]string, len(thresholds))
	for i, t := range thresholds {
		parts[i] = humanize.Ftoa(t)
	}
	return strings.Join(parts, ",")
}

func formatRoutes(routes []policyfile.RouteSpec) string {
	parts := make([]string, len(routes))
	for i, r := range routes {
		method := r.Method
		if method == "" {
			method = "*"
		}
		parts[i] = fmt.Sprintf("%s %s", method, r.URL)
	}
	return strings.Join(parts, "; ")
}

// policyLabel names a policy by ID when known, for tables keyed by ID.
func policyLabel(id int64, known map[int64]types.Policy) string {
	if p, ok := known[id]; ok {
		return fmt.Sprintf("%s/%s", p.Service, p.Name)
	}
	return strconv.FormatInt(id, 10)
}
