package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/presencelink/presencelink/internal/ipc"
)

// connectIPC is replaced in tests.
var connectIPC = ipc.Connect

// newProbeCmd creates the 'probe' command.
func newProbeCmd() *cobra.Command {
	var listOnly bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Find the Discord IPC endpoint",
		Long: `List the IPC endpoints presencelink tries, in order, and report the
first one that accepts a connection. No handshake is sent.

Exits non-zero when no endpoint accepts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			log := GetLogger().WithComponent("probe")

			fmt.Fprintf(out, "Base directory: %s\n", ipc.BaseDir())
			fmt.Fprintln(out, "Candidates:")
			for i, c := range ipc.Candidates() {
				fmt.Fprintf(out, "  %d  %s\n", i, c)
			}
			if listOnly {
				return nil
			}

			conn, err := connectIPC()
			if err != nil {
				if errors.Is(err, ipc.ErrNoEndpointFound) {
					fmt.Fprintln(out, "No Discord client is listening.")
				}
				return err
			}
			defer conn.Close()

			log.Debug().Str("endpoint", conn.Endpoint()).Msg("Endpoint accepted connection")
			fmt.Fprintf(out, "Connected: %s\n", conn.Endpoint())
			return nil
		},
	}

	cmd.Flags().BoolVar(&listOnly, "list", false, "Only list candidates, don't connect")

	return cmd
}
