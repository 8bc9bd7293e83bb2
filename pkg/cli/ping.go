package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPingCmd builds the `ping` command: construct the manager and report
// connectivity.
func NewPingCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := flags.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("database unreachable: %w", err)
			}
			cmd.Println("database reachable")
			return nil
		},
	}
}
