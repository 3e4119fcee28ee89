// Package invalidator implements §4.4, the centerpiece of the coordination
// core: detecting a dead world, reclaiming every lock it held, and
// reassigning, pausing or terminating the plans those locks protected.
package invalidator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/contract"
	"github.com/harrison/conductor/internal/locktable"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/registry"
	"github.com/harrison/conductor/internal/store"
)

// Invalidator runs the invalidate(target_world) protocol on behalf of
// selfWorldID, the world performing reclamation.
type Invalidator struct {
	store       *store.Store
	locks       *locktable.Table
	registry    *registry.Registry
	dispatcher  contract.Dispatcher
	selfWorldID uuid.UUID
	// ValidityTimeout bounds how long a heartbeat is trusted when deciding
	// whether a candidate reassignment target is actually alive (§4.3/§5).
	ValidityTimeout time.Duration
}

// New returns an Invalidator acting as selfWorldID.
func New(s *store.Store, locks *locktable.Table, reg *registry.Registry, dispatcher contract.Dispatcher, selfWorldID uuid.UUID, validityTimeout time.Duration) *Invalidator {
	return &Invalidator{
		store:           s,
		locks:           locks,
		registry:        reg,
		dispatcher:      dispatcher,
		selfWorldID:     selfWorldID,
		ValidityTimeout: validityTimeout,
	}
}

// Invalidate reclaims every lock held by targetWorldID (§4.4). A concurrent
// invalidation of the same target is a no-op: invariant 1, at-most-one
// concurrent invalidation.
func (inv *Invalidator) Invalidate(ctx context.Context, targetWorldID uuid.UUID) error {
	invalidationLockID := models.WorldInvalidationLockID(targetWorldID)
	lock := models.NewLock(invalidationLockID, inv.selfWorldID, models.LockVariantNone)
	res, err := inv.locks.Acquire(lock)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", targetWorldID, err)
	}
	if !res.Acquired {
		// Already being invalidated by someone else; at-most-one invariant.
		return nil
	}
	defer inv.locks.Release(invalidationLockID, inv.selfWorldID)

	if err := inv.registry.Deregister(targetWorldID); err != nil {
		return fmt.Errorf("invalidate %s: deregister: %w", targetWorldID, err)
	}

	owned, err := inv.locks.Find(store.LockFilter{Owner: &targetWorldID})
	if err != nil {
		return fmt.Errorf("invalidate %s: enumerate locks: %w", targetWorldID, err)
	}

	var planning, execution, singleton, other []models.Lock
	for _, l := range owned {
		switch {
		case l.Class == models.LockClassExecutionPlan && l.Variant == models.LockVariantPlanning:
			planning = append(planning, l)
		case l.Class == models.LockClassExecutionPlan && l.Variant == models.LockVariantExecution:
			execution = append(execution, l)
		case l.Class == models.LockClassSingletonAction:
			singleton = append(singleton, l)
		default:
			other = append(other, l)
		}
	}

	for _, l := range planning {
		if err := inv.processPlanningLock(ctx, l, targetWorldID); err != nil {
			return err
		}
	}
	for _, l := range execution {
		if err := inv.processExecutionLock(ctx, l, targetWorldID); err != nil {
			return err
		}
	}
	for _, l := range singleton {
		if _, err := inv.locks.Release(l.ID, targetWorldID); err != nil {
			return fmt.Errorf("invalidate %s: release singleton lock %s: %w", targetWorldID, l.ID, err)
		}
	}
	for _, l := range other {
		if _, err := inv.locks.Release(l.ID, targetWorldID); err != nil {
			return fmt.Errorf("invalidate %s: release lock %s: %w", targetWorldID, l.ID, err)
		}
	}

	return nil
}

// processPlanningLock implements §4.4.3.a.
func (inv *Invalidator) processPlanningLock(ctx context.Context, lock models.Lock, targetWorldID uuid.UUID) error {
	if _, err := inv.locks.Release(lock.ID, targetWorldID); err != nil {
		return fmt.Errorf("release planning lock %s: %w", lock.ID, err)
	}
	if lock.PlanID == nil {
		return nil
	}
	planID := *lock.PlanID

	plan, err := inv.store.LoadPlan(planID)
	if err != nil {
		if models.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load plan %s: %w", planID, err)
	}

	if plan.State == models.PlanStatePlanning && plan.AnyStepNotPending() {
		_, err := inv.saveWithRetry(plan, func(p *models.ExecutionPlan) {
			p.State = models.PlanStateStopped
		}, models.EventTerminateExecution, targetWorldID)
		return err
	}

	// The plan is not mid-plan (it finished planning before the client
	// died, or none of its steps has left pending), and its planning lock
	// is already released. Acquire a fresh execution lock on
	// behalf of a live executor and dispatch it directly; if none is
	// alive, leave it unlocked for the next auto-execute sweep.
	executorWorld, err := inv.registry.FindLiveExecutor(time.Now(), inv.ValidityTimeout, targetWorldID)
	if err != nil {
		return fmt.Errorf("find live executor for plan %s: %w", planID, err)
	}
	if executorWorld == nil {
		return nil
	}

	executionLock := models.NewLock(models.ExecutionPlanLockID(planID), executorWorld.ID, models.LockVariantExecution)
	acquireRes, err := inv.locks.Acquire(executionLock)
	if err != nil {
		return fmt.Errorf("acquire execution lock for plan %s: %w", planID, err)
	}
	if !acquireRes.Acquired {
		return nil
	}
	if inv.dispatcher != nil {
		if err := inv.dispatcher.Dispatch(ctx, planID, executorWorld.ID); err != nil {
			return fmt.Errorf("dispatch plan %s: %w", planID, err)
		}
	}
	return nil
}

// processExecutionLock implements §4.4.3.b.
func (inv *Invalidator) processExecutionLock(ctx context.Context, lock models.Lock, targetWorldID uuid.UUID) error {
	if lock.PlanID == nil {
		_, err := inv.locks.Release(lock.ID, targetWorldID)
		return err
	}
	planID := *lock.PlanID

	plan, err := inv.store.LoadPlan(planID)
	if err != nil {
		if models.IsNotFound(err) {
			_, relErr := inv.locks.Release(lock.ID, targetWorldID)
			return relErr
		}
		return fmt.Errorf("load plan %s: %w", planID, err)
	}

	if err := inv.store.AppendHistory(planID, models.EventTerminateExecution, targetWorldID, time.Now()); err != nil {
		return fmt.Errorf("append terminate execution for plan %s: %w", planID, err)
	}
	plan, err = inv.store.LoadPlan(planID)
	if err != nil {
		return fmt.Errorf("reload plan %s: %w", planID, err)
	}

	if plan.RescueStrategy == models.RescueSkip {
		return inv.finishWithSkip(lock, plan, targetWorldID)
	}
	return inv.reassignOrPause(ctx, lock, plan, targetWorldID)
}

func (inv *Invalidator) finishWithSkip(lock models.Lock, plan models.ExecutionPlan, targetWorldID uuid.UUID) error {
	anySkipped := false
	for i := range plan.Steps {
		switch plan.Steps[i].State {
		case models.StepStateRunning, models.StepStatePending, models.StepStateError:
			plan.Steps[i].State = models.StepStateSkipped
			anySkipped = true
		}
	}
	result := models.PlanResultSuccess
	if anySkipped {
		result = models.PlanResultWarning
	}

	if _, err := inv.saveWithRetryPlan(plan, func(p *models.ExecutionPlan) {
		p.State = models.PlanStateStopped
		p.Result = result
	}); err != nil {
		return fmt.Errorf("finish plan %s with rescue skip: %w", plan.ID, err)
	}
	if _, err := inv.locks.Release(lock.ID, targetWorldID); err != nil {
		return fmt.Errorf("release execution lock %s: %w", lock.ID, err)
	}
	return nil
}

func (inv *Invalidator) reassignOrPause(ctx context.Context, lock models.Lock, plan models.ExecutionPlan, targetWorldID uuid.UUID) error {
	executorWorld, err := inv.registry.FindLiveExecutor(time.Now(), inv.ValidityTimeout, targetWorldID)
	if err != nil {
		return fmt.Errorf("find live executor for plan %s: %w", plan.ID, err)
	}

	if executorWorld != nil {
		if err := inv.store.AppendHistory(plan.ID, models.EventStartExecution, executorWorld.ID, time.Now()); err != nil {
			return fmt.Errorf("append start execution for plan %s: %w", plan.ID, err)
		}
		if err := inv.locks.Transfer(lock.ID, lock.ID, targetWorldID, executorWorld.ID); err != nil {
			return fmt.Errorf("transfer execution lock for plan %s: %w", plan.ID, err)
		}

		fresh, err := inv.store.LoadPlan(plan.ID)
		if err != nil {
			return fmt.Errorf("reload plan %s: %w", plan.ID, err)
		}
		if _, err := inv.saveWithRetryPlan(fresh, func(p *models.ExecutionPlan) {
			p.ExecutorWorldID = &executorWorld.ID
			p.State = models.PlanStateRunning
		}); err != nil {
			return fmt.Errorf("reassign plan %s: %w", plan.ID, err)
		}

		if inv.dispatcher != nil {
			if err := inv.dispatcher.Dispatch(ctx, plan.ID, executorWorld.ID); err != nil {
				return fmt.Errorf("dispatch plan %s: %w", plan.ID, err)
			}
		}
		return nil
	}

	if _, err := inv.saveWithRetryPlan(plan, func(p *models.ExecutionPlan) {
		p.State = models.PlanStatePaused
		p.Result = models.PlanResultPending
		p.ExecutorWorldID = nil
	}); err != nil {
		return fmt.Errorf("pause plan %s: %w", plan.ID, err)
	}
	if _, err := inv.locks.Release(lock.ID, targetWorldID); err != nil {
		return fmt.Errorf("release execution lock %s: %w", lock.ID, err)
	}
	return nil
}

// saveWithRetry mutates plan, appends a history event, and saves, retrying
// once on Conflict after reloading (§4.4 failure semantics). A second
// Conflict is returned to the caller, fatal to this invalidation run only.
func (inv *Invalidator) saveWithRetry(plan models.ExecutionPlan, mutate func(*models.ExecutionPlan), eventName string, worldID uuid.UUID) (models.ExecutionPlan, error) {
	if err := inv.store.AppendHistory(plan.ID, eventName, worldID, time.Now()); err != nil {
		return models.ExecutionPlan{}, err
	}
	fresh, err := inv.store.LoadPlan(plan.ID)
	if err != nil {
		return models.ExecutionPlan{}, err
	}
	return inv.saveWithRetryPlan(fresh, mutate)
}

func (inv *Invalidator) saveWithRetryPlan(plan models.ExecutionPlan, mutate func(*models.ExecutionPlan)) (models.ExecutionPlan, error) {
	mutate(&plan)
	saved, err := inv.store.SavePlan(plan)
	if err == nil {
		return saved, nil
	}
	if !models.IsConflict(err) {
		return models.ExecutionPlan{}, err
	}

	fresh, loadErr := inv.store.LoadPlan(plan.ID)
	if loadErr != nil {
		return models.ExecutionPlan{}, loadErr
	}
	mutate(&fresh)
	saved, err = inv.store.SavePlan(fresh)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("plan %s: %w", plan.ID, err)
	}
	return saved, nil
}
