package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/config"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/registry"
	"github.com/harrison/conductor/internal/validity"
)

func newWorldCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "world",
		Short: "Register, heartbeat, and list cluster worlds",
	}
	cmd.AddCommand(newWorldRegisterCommand())
	cmd.AddCommand(newWorldHeartbeatCommand())
	cmd.AddCommand(newWorldDeregisterCommand())
	cmd.AddCommand(newWorldListCommand())
	return cmd
}

func newWorldRegisterCommand() *cobra.Command {
	var kind string
	var id string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new world and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			worldKind := models.WorldKind(kind)
			if worldKind != models.WorldKindClient && worldKind != models.WorldKindExecutor {
				return fmt.Errorf("--kind must be %q or %q", models.WorldKindClient, models.WorldKindExecutor)
			}

			worldID := uuid.New()
			if id != "" {
				parsed, err := uuid.Parse(id)
				if err != nil {
					return fmt.Errorf("--id: %w", err)
				}
				worldID = parsed
			}

			a, err := newApp(configPathFlag(cmd), config.WorldKind(worldKind))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.reg.Register(models.World{ID: worldID, Kind: worldKind, LastSeen: time.Now()}); err != nil {
				return err
			}
			a.log.Infof("registered world %s (%s)", worldID, worldKind)

			if a.cfg.ResolvedAutoValidityCheck(config.WorldKind(worldKind)) {
				checker := validity.New(a.store, a.locks, a.reg, a.invalidatorFor(worldID), a.validityTimeout())
				if _, err := checker.WorldsValidityCheck(cmd.Context(), true, validity.Filter{}); err != nil {
					return fmt.Errorf("validity check before announcing %s ready: %w", worldID, err)
				}
				if _, err := checker.LocksValidityCheck(); err != nil {
					return fmt.Errorf("validity check before announcing %s ready: %w", worldID, err)
				}
				a.log.Debugf("startup validity check passed for world %s", worldID)
			}

			fmt.Fprintln(cmd.OutOrStdout(), worldID)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(models.WorldKindClient), "world kind: client or executor")
	cmd.Flags().StringVar(&id, "id", "", "explicit world id (random if omitted)")
	return cmd
}

func newWorldHeartbeatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Refresh a world's last-seen timestamp",
		RunE: func(cmd *cobra.Command, args []string) error {
			worldID, err := parseUUIDFlag(cmd, "id")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.reg.Heartbeat(worldID, time.Now()); err != nil {
				return err
			}
			a.log.Debugf("heartbeat for world %s", worldID)
			return nil
		},
	}
	cmd.Flags().String("id", "", "world id")
	return cmd
}

func newWorldDeregisterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deregister",
		Short: "Remove a world from the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			worldID, err := parseUUIDFlag(cmd, "id")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.reg.Deregister(worldID); err != nil {
				return err
			}
			a.log.Infof("deregistered world %s", worldID)
			return nil
		},
	}
	cmd.Flags().String("id", "", "world id")
	return cmd
}

func newWorldListCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered worlds",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			worlds, err := a.reg.Find(registry.Filter{Kind: models.WorldKind(kind)})
			if err != nil {
				return err
			}
			now := time.Now()
			for _, w := range worlds {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tlast_seen=%s\tstale=%t\n",
					w.ID, w.Kind, w.LastSeen.Format(time.RFC3339), w.IsStale(now, a.validityTimeout()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "filter by world kind (client or executor)")
	return cmd
}
