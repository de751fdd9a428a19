package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"captive-portal/gwctl/internal/portal"
)

type authOptions struct {
	commonOptions
	Stage    string
	Token    string
	MAC      string
	IP       string
	Incoming int64
	Outgoing int64
	Uptime   int64
}

func NewAuthCommand() *cobra.Command {
	opts := &authOptions{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Validate a client token the way a gateway does",
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, err := opts.client()
			if err != nil {
				return err
			}
			q := portal.AuthQuery{
				Stage:     opts.Stage,
				Token:     opts.Token,
				MAC:       opts.MAC,
				IP:        opts.IP,
				GatewayID: opts.GatewayID,
				Incoming:  opts.Incoming,
				Outgoing:  opts.Outgoing,
			}
			if cmd.Flags().Changed("uptime") {
				q.Uptime = &opts.Uptime
			}

			allowed, err := cp.Auth(cmd.Context(), q)
			if err != nil {
				return err
			}
			if allowed {
				fmt.Fprintln(cmd.OutOrStdout(), "Auth: 1")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Auth: 0")
			}
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Stage, "stage", "login", "login, counters or logout")
	cmd.Flags().StringVar(&opts.Token, "token", "", "client token")
	cmd.Flags().StringVar(&opts.MAC, "mac", "", "client MAC address")
	cmd.Flags().StringVar(&opts.IP, "ip", "", "client IP address")
	cmd.Flags().Int64Var(&opts.Incoming, "incoming", 0, "cumulative bytes received by the client")
	cmd.Flags().Int64Var(&opts.Outgoing, "outgoing", 0, "cumulative bytes sent by the client")
	cmd.Flags().Int64Var(&opts.Uptime, "uptime", 0, "seconds since the client was admitted")
	cmd.MarkFlagRequired("token")

	return cmd
}
