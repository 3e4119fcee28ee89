package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/config"
	"github.com/harrison/conductor/internal/registry"
	"github.com/harrison/conductor/internal/report"
	"github.com/harrison/conductor/internal/store"
)

func newStatusCommand() *cobra.Command {
	var format string
	var note string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Render a snapshot of worlds, locks and plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			worlds, err := a.reg.Find(registry.Filter{})
			if err != nil {
				return err
			}
			locks, err := a.locks.Find(store.LockFilter{})
			if err != nil {
				return err
			}
			plans, err := a.store.FindPlans(store.PlanFilter{})
			if err != nil {
				return err
			}

			snap := report.ClusterSnapshot{
				Worlds:    worlds,
				Locks:     locks,
				Plans:     plans,
				Timeout:   a.validityTimeout(),
				Generated: time.Now(),
				Note:      note,
			}
			md := report.RenderMarkdown(snap)

			switch format {
			case "md":
				fmt.Fprint(cmd.OutOrStdout(), md)
			case "html":
				html, err := report.RenderHTML(md)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), html)
			default:
				return fmt.Errorf("--format must be %q or %q", "md", "html")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "md", "output format: md or html")
	cmd.Flags().StringVar(&note, "note", "", "operator incident note to attach to this report")
	return cmd
}
