package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/config"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/validity"
)

func newValidityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validity",
		Short: "Run the worlds and locks validity checks (§4.6)",
	}
	cmd.AddCommand(newValidityWorldsCommand())
	cmd.AddCommand(newValidityLocksCommand())
	return cmd
}

func newValidityWorldsCommand() *cobra.Command {
	var invalidate bool
	var kind string
	var selfFlag string

	cmd := &cobra.Command{
		Use:   "worlds",
		Short: "Mark stale worlds invalid, optionally invalidating them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			var selfID uuid.UUID
			if invalidate {
				selfID, err = parseUUIDFlag(cmd, "self")
				if err != nil {
					return err
				}
			}

			checker := validity.New(a.store, a.locks, a.reg, a.invalidatorFor(selfID), a.validityTimeout())
			result, err := checker.WorldsValidityCheck(cmd.Context(), invalidate, validity.Filter{Kind: models.WorldKind(kind)})
			if err != nil {
				return err
			}
			for id, status := range result {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&invalidate, "invalidate", false, "also run invalidation on each stale world")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by world kind")
	cmd.Flags().StringVar(&selfFlag, "self", "", "world id running the invalidation (required with --invalidate)")
	return cmd
}

func newValidityLocksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "Release orphaned locks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			checker := validity.New(a.store, a.locks, a.reg, nil, a.validityTimeout())
			released, err := checker.LocksValidityCheck()
			if err != nil {
				return err
			}
			for _, l := range released {
				fmt.Fprintln(cmd.OutOrStdout(), l.ID)
			}
			a.log.Infof("released %d orphaned lock(s)", len(released))
			return nil
		},
	}
	return cmd
}
