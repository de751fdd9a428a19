package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"captive-portal/gwctl/internal/portal"
)

type pingOptions struct {
	commonOptions
	MAC      string
	Loop     bool
	Interval time.Duration
}

func NewPingCommand() *cobra.Command {
	opts := &pingOptions{}

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Send a gateway heartbeat",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.GatewayID == "" {
				return errors.New("--gw-id is required")
			}
			cp, err := opts.client()
			if err != nil {
				return err
			}

			if !opts.Loop {
				if err := cp.Ping(cmd.Context(), portal.Heartbeat{GatewayID: opts.GatewayID, MAC: opts.MAC}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pong")
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logrus.New()
			log.SetOutput(cmd.ErrOrStderr())
			h := &portal.Heartbeater{
				Client:    cp,
				GatewayID: opts.GatewayID,
				MAC:       opts.MAC,
				Interval:  opts.Interval,
				Log:       log.WithField("gw_id", opts.GatewayID),
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sending heartbeats; press Ctrl+C to stop")
			if err := h.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.MAC, "gw-mac", "", "gateway MAC address")
	cmd.Flags().BoolVar(&opts.Loop, "loop", false, "keep pinging until interrupted")
	cmd.Flags().DurationVar(&opts.Interval, "interval", portal.DefaultHeartbeatInterval, "interval between pings with --loop")

	return cmd
}
