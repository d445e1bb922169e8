package main

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/warden/policyfile"
	"mercator-hq/warden/pkg/warden/remote"
	"mercator-hq/warden/pkg/warden/types"
)

var userFlags struct {
	output string
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Query the authority about a user",
}

var userSuspensionsCmd = &cobra.Command{
	Use:   "suspensions USER",
	Short: "List the active suspensions of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return queryUser(cmd, args[0], (*remote.Client).GetUserSuspensions)
	},
}

var userInfractionsCmd = &cobra.Command{
	Use:   "infractions USER",
	Short: "List all recorded infractions of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return queryUser(cmd, args[0], (*remote.Client).GetUserInfractions)
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userSuspensionsCmd, userInfractionsCmd)

	userCmd.PersistentFlags().StringVarP(&userFlags.output, "output", "o", "text", "output format: text, json, yaml")
}

type userQuery func(c *remote.Client, ctx context.Context, user string) ([]types.Infraction, error)

func queryUser(cmd *cobra.Command, user string, query userQuery) error {
	format, err := cli.ParseFormat(userFlags.output)
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
	rc, err := newRemote(&cfg.Warden, logger, nil)
	if err != nil {
		return cli.NewConfigError("warden", err)
	}
	defer rc.Close()

	ctx := cmd.Context()
	if err := rc.Login(ctx, cfg.Warden.Username, cfg.Warden.Password); err != nil {
		return cli.NewCommandError(cmd.CommandPath(), err)
	}
	known := declaredIDs(ctx, rc, cfg.Policies.File)
	infractions, err := query(rc, ctx, user)
	if lerr := rc.Logout(ctx); lerr != nil {
		err = errors.Join(err, lerr)
	}
	if err != nil {
		return cli.NewCommandError(cmd.CommandPath(), err)
	}

	now := time.Now()
	table := cli.NewTable("POLICY", "USER", "VALUE", "RECORDED", "EXPIRES")
	for _, in := range infractions {
		table.Append(
			policyLabel(in.PolicyID, known),
			in.Username,
			humanize.Ftoa(in.Value),
			humanize.RelTime(time.UnixMilli(in.InfractionTimestamp), now, "ago", "from now"),
			expiry(&in, now),
		)
	}
	return cli.NewFormatter(format).Write(cmd.OutOrStdout(), table)
}

func expiry(in *types.Infraction, now time.Time) string {
	exp, ok := in.Expiration()
	switch {
	case !ok:
		return "-"
	case exp == types.IndefiniteExpiration:
		return "never"
	default:
		return humanize.RelTime(time.UnixMilli(exp), now, "ago", "from now")
	}
}

// declaredIDs resolves the IDs of the declared policies so tables can name
// them. Unreadable files and unknown policies are skipped.
func declaredIDs(ctx context.Context, rc *remote.Client, path string) map[int64]types.Policy {
	known := map[int64]types.Policy{}
	f, err := policyfile.Load(path)
	if err != nil {
		return known
	}
	for _, p := range f.Declared() {
		existing, err := rc.GetPolicy(ctx, p.Service, p.Name)
		if err != nil || existing == nil {
			continue
		}
		if id, ok := existing.PolicyID(); ok {
			known[id] = p
		}
	}
	return known
}
