// Package coordinator composes the persistence gateway, lock table and
// registry into the plan-lifecycle critical sections of §2: begin planning,
// finish planning, begin execution, finish execution, pause, stop. Each is
// a short sequence of lock-table and store calls; the sequence is not
// wrapped in a single store transaction, so a failure part-way leaves the
// earlier calls in effect.
package coordinator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/locktable"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/store"
)

// Coordinator issues and tracks the durable locks backing a plan's
// lifecycle, on top of a Store and Table shared with the rest of the core.
type Coordinator struct {
	store *store.Store
	locks *locktable.Table
}

// New returns a Coordinator backed by s and locks.
func New(s *store.Store, locks *locktable.Table) *Coordinator {
	return &Coordinator{store: s, locks: locks}
}

// BeginPlanning creates a new plan in the planning state and acquires its
// planning lock on behalf of clientWorldID.
func (c *Coordinator) BeginPlanning(clientWorldID uuid.UUID, steps []models.Step, rescue models.RescueStrategy) (models.ExecutionPlan, error) {
	planID := uuid.New()
	lock := models.NewLock(models.ExecutionPlanLockID(planID), clientWorldID, models.LockVariantPlanning)
	res, err := c.locks.Acquire(lock)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("begin planning: %w", err)
	}
	if !res.Acquired {
		return models.ExecutionPlan{}, models.Conflictf("plan %s already locked", planID)
	}

	plan := models.ExecutionPlan{
		ID:             planID,
		State:          models.PlanStatePlanning,
		Result:         models.PlanResultPending,
		Steps:          steps,
		PlannerWorldID: clientWorldID,
		RescueStrategy: rescue,
	}
	saved, err := c.store.SavePlan(plan)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("begin planning: %w", err)
	}
	return saved, nil
}

// FinishPlanning transitions a plan from planning to planned and releases
// its planning lock.
func (c *Coordinator) FinishPlanning(clientWorldID, planID uuid.UUID) (models.ExecutionPlan, error) {
	plan, err := c.store.LoadPlan(planID)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("finish planning: %w", err)
	}
	if !models.CanTransition(plan.State, models.PlanStatePlanned) {
		return models.ExecutionPlan{}, fmt.Errorf("finish planning: illegal transition %s -> %s", plan.State, models.PlanStatePlanned)
	}

	plan.State = models.PlanStatePlanned
	saved, err := c.store.SavePlan(plan)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("finish planning: %w", err)
	}

	if _, err := c.locks.Release(models.ExecutionPlanLockID(planID), clientWorldID); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("finish planning: release lock: %w", err)
	}
	return saved, nil
}

// BeginExecution acquires a plan's execution lock for executorWorldID and
// transitions it to running. Valid from planned (first run) or paused
// (resume).
func (c *Coordinator) BeginExecution(executorWorldID, planID uuid.UUID) (models.ExecutionPlan, error) {
	plan, err := c.store.LoadPlan(planID)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("begin execution: %w", err)
	}
	if !models.CanTransition(plan.State, models.PlanStateRunning) {
		return models.ExecutionPlan{}, fmt.Errorf("begin execution: illegal transition %s -> %s", plan.State, models.PlanStateRunning)
	}

	lock := models.NewLock(models.ExecutionPlanLockID(planID), executorWorldID, models.LockVariantExecution)
	res, err := c.locks.Acquire(lock)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("begin execution: %w", err)
	}
	if !res.Acquired {
		return models.ExecutionPlan{}, models.Conflictf("plan %s execution lock already held", planID)
	}

	if err := c.store.AppendHistory(planID, models.EventStartExecution, executorWorldID, time.Now()); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("begin execution: %w", err)
	}
	fresh, err := c.store.LoadPlan(planID)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("begin execution: %w", err)
	}
	fresh.State = models.PlanStateRunning
	fresh.ExecutorWorldID = &executorWorldID
	saved, err := c.store.SavePlan(fresh)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("begin execution: %w", err)
	}
	return saved, nil
}

// FinishExecution transitions a running plan to stopped with the given
// result and releases its execution lock.
func (c *Coordinator) FinishExecution(executorWorldID, planID uuid.UUID, result models.PlanResult) (models.ExecutionPlan, error) {
	plan, err := c.store.LoadPlan(planID)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("finish execution: %w", err)
	}
	if !models.CanTransition(plan.State, models.PlanStateStopped) {
		return models.ExecutionPlan{}, fmt.Errorf("finish execution: illegal transition %s -> %s", plan.State, models.PlanStateStopped)
	}

	if err := c.store.AppendHistory(planID, models.EventFinishExecution, executorWorldID, time.Now()); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("finish execution: %w", err)
	}
	fresh, err := c.store.LoadPlan(planID)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("finish execution: %w", err)
	}
	fresh.State = models.PlanStateStopped
	fresh.Result = result
	saved, err := c.store.SavePlan(fresh)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("finish execution: %w", err)
	}

	if _, err := c.locks.Release(models.ExecutionPlanLockID(planID), executorWorldID); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("finish execution: release lock: %w", err)
	}
	return saved, nil
}

// Pause transitions a running plan to paused with result=pending and
// releases its execution lock, so a later auto-execute sweep or explicit
// BeginExecution can resume it.
func (c *Coordinator) Pause(executorWorldID, planID uuid.UUID) (models.ExecutionPlan, error) {
	plan, err := c.store.LoadPlan(planID)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("pause: %w", err)
	}
	if !models.CanTransition(plan.State, models.PlanStatePaused) {
		return models.ExecutionPlan{}, fmt.Errorf("pause: illegal transition %s -> %s", plan.State, models.PlanStatePaused)
	}

	if err := c.store.AppendHistory(planID, models.EventPauseExecution, executorWorldID, time.Now()); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("pause: %w", err)
	}
	fresh, err := c.store.LoadPlan(planID)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("pause: %w", err)
	}
	fresh.State = models.PlanStatePaused
	fresh.Result = models.PlanResultPending
	saved, err := c.store.SavePlan(fresh)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("pause: %w", err)
	}

	if _, err := c.locks.Release(models.ExecutionPlanLockID(planID), executorWorldID); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("pause: release lock: %w", err)
	}
	return saved, nil
}

// Stop forcibly terminates a plan (client cancellation, not a crash-driven
// invalidation), releasing any execution lock actorWorldID holds for it.
func (c *Coordinator) Stop(actorWorldID, planID uuid.UUID, result models.PlanResult) (models.ExecutionPlan, error) {
	plan, err := c.store.LoadPlan(planID)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("stop: %w", err)
	}
	if models.IsTerminal(plan.State) {
		return plan, nil
	}
	if !models.CanTransition(plan.State, models.PlanStateStopped) {
		return models.ExecutionPlan{}, fmt.Errorf("stop: illegal transition %s -> %s", plan.State, models.PlanStateStopped)
	}

	if err := c.store.AppendHistory(planID, models.EventTerminateExecution, actorWorldID, time.Now()); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("stop: %w", err)
	}
	fresh, err := c.store.LoadPlan(planID)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("stop: %w", err)
	}
	fresh.State = models.PlanStateStopped
	fresh.Result = result
	saved, err := c.store.SavePlan(fresh)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("stop: %w", err)
	}

	if _, err := c.locks.Release(models.ExecutionPlanLockID(planID), actorWorldID); err != nil && !models.IsConflict(err) {
		return models.ExecutionPlan{}, fmt.Errorf("stop: release lock: %w", err)
	}
	return saved, nil
}
