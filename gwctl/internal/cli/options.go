// Package cli holds the gwctl subcommands.
package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"captive-portal/gwctl/internal/portal"
)

const envPortalURL = "GWCTL_PORTAL_URL"

// commonOptions are shared by every subcommand.
type commonOptions struct {
	PortalURL string
	GatewayID string
}

func (o *commonOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.PortalURL, "portal", "", "portal base URL including /wifidog (default $"+envPortalURL+")")
	cmd.Flags().StringVar(&o.GatewayID, "gw-id", "", "gateway identifier")
}

func (o *commonOptions) client() (*portal.Client, error) {
	u := o.PortalURL
	if u == "" {
		u = os.Getenv(envPortalURL)
	}
	if u == "" {
		return nil, errors.New("--portal or " + envPortalURL + " is required")
	}
	return portal.New(u), nil
}
