package contract

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/store"
)

// Dispatcher hands a plan to an executor world for (re)execution. It is the
// shared resumption path used both by the invalidator's reassignment branch
// (§4.4.3.b) and by the auto-execute sweep (§4.5).
type Dispatcher interface {
	Dispatch(ctx context.Context, planID uuid.UUID, executorWorldID uuid.UUID) error
}

// InProcessDispatcher is a reference Dispatcher composing a Store, an
// Executor and a Connector: it marks the plan running under the given
// executor, best-effort notifies that executor over the connector, and
// drives the in-process Executor to completion in the background.
type InProcessDispatcher struct {
	store     *store.Store
	executor  Executor
	connector Connector
}

// NewInProcessDispatcher returns a Dispatcher wired to s, exec and conn.
func NewInProcessDispatcher(s *store.Store, exec Executor, conn Connector) *InProcessDispatcher {
	return &InProcessDispatcher{store: s, executor: exec, connector: conn}
}

// Dispatch marks planID running under executorWorldID and starts it.
func (d *InProcessDispatcher) Dispatch(ctx context.Context, planID uuid.UUID, executorWorldID uuid.UUID) error {
	plan, err := d.store.LoadPlan(planID)
	if err != nil {
		return fmt.Errorf("dispatch plan %s: %w", planID, err)
	}

	if err := d.store.AppendHistory(planID, models.EventStartExecution, executorWorldID, time.Now()); err != nil {
		return fmt.Errorf("dispatch plan %s: %w", planID, err)
	}

	plan.ExecutorWorldID = &executorWorldID
	if plan.State != models.PlanStateRunning {
		plan.State = models.PlanStateRunning
	}
	if _, err := d.store.SavePlan(plan); err != nil {
		return fmt.Errorf("dispatch plan %s: %w", planID, err)
	}

	if d.connector != nil {
		err := d.connector.Send(ctx, executorWorldID, Message{Kind: KindExecutePlan, PlanID: planID, WorldID: executorWorldID})
		if err != nil && !models.IsNotFound(err) {
			// Transport failures are dropped here without being logged and
			// do not fail the dispatch; a missing listener is expected for
			// executors driven purely in-process.
			_ = err
		}
	}

	if d.executor == nil {
		return nil
	}
	updates, err := d.executor.Execute(ctx, planID)
	if err != nil {
		return fmt.Errorf("dispatch plan %s: %w", planID, err)
	}
	go func() {
		for snapshot := range updates {
			snapshot.ExecutorWorldID = &executorWorldID
			current, err := d.store.LoadPlan(planID)
			if err != nil {
				continue
			}
			current.Steps = snapshot.Steps
			current.State = snapshot.State
			current.Result = snapshot.Result
			if _, err := d.store.SavePlan(current); err != nil {
				continue
			}
			if snapshot.State == models.PlanStateStopped {
				_ = d.store.AppendHistory(planID, models.EventFinishExecution, executorWorldID, time.Now())
			}
		}
	}()
	return nil
}
