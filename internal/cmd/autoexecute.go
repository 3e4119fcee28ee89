package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/config"
)

func newAutoExecuteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto-execute",
		Short: "Resume planned, running and paused plans with no live execution lock (§4.5)",
		RunE: func(cmd *cobra.Command, args []string) error {
			selfID, err := parseUUIDFlag(cmd, "self")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			sweeper := a.sweeperFor(selfID)
			resumed, err := sweeper.Run(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range resumed {
				fmt.Fprintln(cmd.OutOrStdout(), r.PlanID)
			}
			a.log.Infof("auto-execute sweep resumed %d plan(s)", len(resumed))
			return nil
		},
	}
	cmd.Flags().String("self", "", "world id running this sweep")
	return cmd
}
