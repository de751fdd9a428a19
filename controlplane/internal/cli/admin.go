package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"captive-portal/controlplane/internal/config"
	"captive-portal/controlplane/internal/service"
)

func NewSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire unused and idle sessions once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.Sweep(cmd.Context(), service.SweepOptions{
				PendingTTL:  a.env.PendingTTL,
				IdleTimeout: a.env.IdleTimeout,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d unused, %d idle\n", res.Unused, res.Idle)
			return nil
		},
	}
}

func NewGatewayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage registered gateways",
	}

	var name, mac string
	add := &cobra.Command{
		Use:   "add <gw_id>",
		Short: "Register a gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			gw, err := a.svc.CreateGateway(cmd.Context(), args[0], name, mac)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", gw.GatewayID, gw.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&mac, "mac", "", "gateway MAC address")

	list := &cobra.Command{
		Use:   "list",
		Short: "List gateways with their last heartbeat",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			gateways, err := a.svc.ListGateways(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GW_ID\tNAME\tMAC\tADDRESS\tLAST SEEN")
			for _, g := range gateways {
				seen := "never"
				if g.LastHeartbeatAt != nil {
					seen = humanize.Time(*g.LastHeartbeatAt)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", g.GatewayID, g.Name, g.MACAddress, g.ManagementIP, seen)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func NewUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage portal accounts",
	}

	var name, password, policy string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a portal account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.svc.CreateUser(cmd.Context(), args[0], name, password, policy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&password, "password", "", "login password")
	add.Flags().StringVar(&policy, "policy", "", "policy name to assign")

	cmd.AddCommand(add)
	return cmd
}

func NewPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage access policies",
	}

	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or update policies from a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			policies, err := config.LoadPolicyCatalog(args[0])
			if err != nil {
				return err
			}
			res, err := a.svc.ImportPolicies(cmd.Context(), policies)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, unchanged %d\n", res.Created, res.Updated, res.Unchanged)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			policies, err := a.svc.ListPolicies(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVERSION\tACTIVE\tDEVICES\tDAILY\tWEEKLY\tMONTHLY\tMAX UPTIME")
			for _, p := range policies {
				fmt.Fprintf(tw, "%s\t%d\t%t\t%s\t%s\t%s\t%s\t%s\n",
					p.Name, p.Version, p.Active, limitCount(p.MaxDevices),
					limitBytes(p.DailyBytes), limitBytes(p.WeeklyBytes), limitBytes(p.MonthlyBytes),
					limitDuration(p.MaxUptimeSeconds))
			}
			return tw.Flush()
		},
	}

	override := &cobra.Command{
		Use:   "override <username> [policy]",
		Short: "Pin a user to a policy in redis; omit the policy to clear",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.overrides == nil {
				return errors.New("PORTAL_REDIS_URL is not set")
			}

			u, err := a.svc.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			if err := a.overrides.SetPolicyOverride(cmd.Context(), u.ID, name); err != nil {
				return err
			}
			if name == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "cleared override for %s\n", u.Username)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now uses %s\n", u.Username, name)
			return nil
		},
	}

	cmd.AddCommand(importCmd, list, override)
	return cmd
}

func limitCount(n int) string {
	if n <= 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

func limitBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

func limitDuration(seconds int64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).String()
}
