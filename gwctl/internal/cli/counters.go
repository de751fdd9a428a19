package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"captive-portal/gwctl/internal/portal"
)

type countersOptions struct {
	commonOptions
	File string
}

func NewCountersCommand() *cobra.Command {
	opts := &countersOptions{}

	cmd := &cobra.Command{
		Use:   "counters",
		Short: "Report a batch of client counters read from a JSON file",
		Long:  "Reads a JSON array of {token, mac, incoming, outgoing, uptime} objects from --file (or stdin with -) and prints one verdict per client.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.GatewayID == "" {
				return errors.New("--gw-id is required")
			}
			entries, err := readEntries(cmd.InOrStdin(), opts.File)
			if err != nil {
				return err
			}
			cp, err := opts.client()
			if err != nil {
				return err
			}

			verdicts, err := cp.Counters(cmd.Context(), opts.GatewayID, entries)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MAC\tAUTH")
			for _, v := range verdicts {
				fmt.Fprintf(tw, "%s\t%d\n", v.MAC, v.Auth)
			}
			return tw.Flush()
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.File, "file", "f", "-", "JSON file with client entries")

	return cmd
}

func readEntries(stdin io.Reader, path string) ([]portal.CounterEntry, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	var entries []portal.CounterEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return entries, nil
}
