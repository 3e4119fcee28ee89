// Package cmd wires the coordination core (internal/store, internal/
// locktable, internal/registry, internal/coordinator, internal/invalidator,
// internal/autoexec, internal/validity, internal/contract) behind a cobra
// command tree. Each subcommand opens a fresh app (one store connection,
// guarded by a local-instance flock), performs one coordination operation,
// and exits — there is no long-running daemon mode.
package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewRootCommand creates and returns the root cobra command for conductor.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conductor",
		Short: "Distributed workflow coordination core",
		Long: `Conductor coordinates execution plans across a cluster of client and
executor worlds: durable locks, world liveness tracking, crash recovery via
invalidation, and auto-execute resumption of unlocked plans.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "conductor.yaml", "path to the coordinator config file")

	cmd.AddCommand(newWorldCommand())
	cmd.AddCommand(newPlanCommand())
	cmd.AddCommand(newInvalidateCommand())
	cmd.AddCommand(newAutoExecuteCommand())
	cmd.AddCommand(newValidityCommand())
	cmd.AddCommand(newStatusCommand())

	return cmd
}

func parseUUIDFlag(cmd *cobra.Command, name string) (uuid.UUID, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return uuid.UUID{}, err
	}
	if raw == "" {
		return uuid.UUID{}, fmt.Errorf("--%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("--%s: %w", name, err)
	}
	return id, nil
}
