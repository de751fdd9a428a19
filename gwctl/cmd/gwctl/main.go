package main

import (
	"os"

	"github.com/spf13/cobra"

	"captive-portal/gwctl/internal/cli"
)

func main() {
	root := &cobra.Command{
		Use:          "gwctl",
		Short:        "Speak the gateway protocol to a captive portal",
		SilenceUsage: true,
	}
	root.AddCommand(
		cli.NewPingCommand(),
		cli.NewAuthCommand(),
		cli.NewCountersCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
