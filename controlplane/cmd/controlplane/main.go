package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"captive-portal/controlplane/internal/cli"
)

func main() {
	_ = godotenv.Load("controlplane/.env")
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "controlplane",
		Short:        "Captive portal authentication server",
		SilenceUsage: true,
	}
	root.AddCommand(
		cli.NewServeCommand(),
		cli.NewSweepCommand(),
		cli.NewGatewayCommand(),
		cli.NewUserCommand(),
		cli.NewPolicyCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
