package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/config"
	"github.com/harrison/conductor/internal/coordinator"
	"github.com/harrison/conductor/internal/models"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Drive a plan through its lifecycle: plan, execute, pause, stop",
	}
	cmd.AddCommand(newPlanBeginPlanningCommand())
	cmd.AddCommand(newPlanFinishPlanningCommand())
	cmd.AddCommand(newPlanBeginExecutionCommand())
	cmd.AddCommand(newPlanFinishExecutionCommand())
	cmd.AddCommand(newPlanPauseCommand())
	cmd.AddCommand(newPlanStopCommand())
	cmd.AddCommand(newPlanShowCommand())
	return cmd
}

func newPlanBeginPlanningCommand() *cobra.Command {
	var rescue string

	cmd := &cobra.Command{
		Use:   "begin-planning",
		Short: "Create a plan in the planning state and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseUUIDFlag(cmd, "client")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindClient)
			if err != nil {
				return err
			}
			defer a.Close()

			c := coordinator.New(a.store, a.locks)
			plan, err := c.BeginPlanning(clientID, nil, models.RescueStrategy(rescue))
			if err != nil {
				return err
			}
			a.log.Infof("plan %s begun planning by %s", plan.ID, clientID)
			fmt.Fprintln(cmd.OutOrStdout(), plan.ID)
			return nil
		},
	}
	cmd.Flags().String("client", "", "client world id")
	cmd.Flags().StringVar(&rescue, "rescue", string(models.RescueDefault), "rescue strategy: default or skip")
	return cmd
}

func newPlanFinishPlanningCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finish-planning",
		Short: "Transition a plan from planning to planned",
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseUUIDFlag(cmd, "client")
			if err != nil {
				return err
			}
			planID, err := parseUUIDFlag(cmd, "plan")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindClient)
			if err != nil {
				return err
			}
			defer a.Close()

			c := coordinator.New(a.store, a.locks)
			plan, err := c.FinishPlanning(clientID, planID)
			if err != nil {
				return err
			}
			a.log.Infof("plan %s finished planning (state=%s)", plan.ID, plan.State)
			return nil
		},
	}
	cmd.Flags().String("client", "", "client world id")
	cmd.Flags().String("plan", "", "plan id")
	return cmd
}

func newPlanBeginExecutionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "begin-execution",
		Short: "Acquire a plan's execution lock and transition it to running",
		RunE: func(cmd *cobra.Command, args []string) error {
			executorID, err := parseUUIDFlag(cmd, "executor")
			if err != nil {
				return err
			}
			planID, err := parseUUIDFlag(cmd, "plan")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			c := coordinator.New(a.store, a.locks)
			plan, err := c.BeginExecution(executorID, planID)
			if err != nil {
				return err
			}
			a.log.Infof("plan %s begun execution by %s", plan.ID, executorID)
			return nil
		},
	}
	cmd.Flags().String("executor", "", "executor world id")
	cmd.Flags().String("plan", "", "plan id")
	return cmd
}

func newPlanFinishExecutionCommand() *cobra.Command {
	var result string

	cmd := &cobra.Command{
		Use:   "finish-execution",
		Short: "Transition a running plan to stopped and release its execution lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			executorID, err := parseUUIDFlag(cmd, "executor")
			if err != nil {
				return err
			}
			planID, err := parseUUIDFlag(cmd, "plan")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			c := coordinator.New(a.store, a.locks)
			plan, err := c.FinishExecution(executorID, planID, models.PlanResult(result))
			if err != nil {
				return err
			}
			a.log.Infof("plan %s finished execution (result=%s)", plan.ID, plan.Result)
			return nil
		},
	}
	cmd.Flags().String("executor", "", "executor world id")
	cmd.Flags().String("plan", "", "plan id")
	cmd.Flags().StringVar(&result, "result", string(models.PlanResultSuccess), "result: success, warning or error")
	return cmd
}

func newPlanPauseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause a running plan and release its execution lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			executorID, err := parseUUIDFlag(cmd, "executor")
			if err != nil {
				return err
			}
			planID, err := parseUUIDFlag(cmd, "plan")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			c := coordinator.New(a.store, a.locks)
			plan, err := c.Pause(executorID, planID)
			if err != nil {
				return err
			}
			a.log.Infof("plan %s paused", plan.ID)
			return nil
		},
	}
	cmd.Flags().String("executor", "", "executor world id")
	cmd.Flags().String("plan", "", "plan id")
	return cmd
}

func newPlanStopCommand() *cobra.Command {
	var result string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Forcibly stop a plan, releasing any execution lock the actor holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := parseUUIDFlag(cmd, "actor")
			if err != nil {
				return err
			}
			planID, err := parseUUIDFlag(cmd, "plan")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			c := coordinator.New(a.store, a.locks)
			plan, err := c.Stop(actorID, planID, models.PlanResult(result))
			if err != nil {
				return err
			}
			a.log.Infof("plan %s stopped (result=%s)", plan.ID, plan.Result)
			return nil
		},
	}
	cmd.Flags().String("actor", "", "world id requesting the stop")
	cmd.Flags().String("plan", "", "plan id")
	cmd.Flags().StringVar(&result, "result", string(models.PlanResultError), "result recorded on the stopped plan")
	return cmd
}

func newPlanShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a plan's state, result and history",
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, err := parseUUIDFlag(cmd, "plan")
			if err != nil {
				return err
			}
			a, err := newApp(configPathFlag(cmd), config.WorldKindExecutor)
			if err != nil {
				return err
			}
			defer a.Close()

			plan, err := a.store.LoadPlan(planID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:     %s\nstate:  %s\nresult: %s\nsteps:  %d\n", plan.ID, plan.State, plan.Result, len(plan.Steps))
			for _, ev := range plan.History {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s by %s\n", ev.Timestamp.Format("15:04:05"), ev.Name, ev.WorldID)
			}
			return nil
		},
	}
	cmd.Flags().String("plan", "", "plan id")
	return cmd
}
