package cmd

import (
	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/config"
)

func newInvalidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Reclaim a dead world's planning and execution locks (§4.4)",
		RunE: func(cmd *cobra.Command, args []string) error {
			selfID, err := parseUUIDFlag(cmd, "self")
			if err != nil {
				return err
			}
			targetID, err := parseUUIDFlag(cmd, "target")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			inv := a.invalidatorFor(selfID)
			if err := inv.Invalidate(cmd.Context(), targetID); err != nil {
				return err
			}
			a.log.Infof("invalidated world %s", targetID)
			return nil
		},
	}
	cmd.Flags().String("self", "", "world id running this invalidation")
	cmd.Flags().String("target", "", "world id to reclaim")
	return cmd
}
