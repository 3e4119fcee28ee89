// Package autoexec implements the auto-execute sweep (§4.5): resuming plans
// left `planned`, `running` or `paused` (except paused with result=error)
// with no live execution lock, as happens after a crash that an invalidator
// hasn't yet (or won't ever) observe directly.
package autoexec

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/contract"
	"github.com/harrison/conductor/internal/locktable"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/store"
)

// Sweeper runs auto_execute() on behalf of selfWorldID, the local executor.
type Sweeper struct {
	store       *store.Store
	locks       *locktable.Table
	dispatcher  contract.Dispatcher
	selfWorldID uuid.UUID
}

// New returns a Sweeper that dispatches resumed plans to selfWorldID.
func New(s *store.Store, locks *locktable.Table, dispatcher contract.Dispatcher, selfWorldID uuid.UUID) *Sweeper {
	return &Sweeper{store: s, locks: locks, dispatcher: dispatcher, selfWorldID: selfWorldID}
}

// Resumed describes one plan the sweep dispatched.
type Resumed struct {
	PlanID uuid.UUID
}

// Run acquires the cluster-wide auto-execute lock (a no-op if already held
// elsewhere), resumes every eligible plan, and releases the lock once
// dispatch (not completion) of every resumption has been issued (§4.5.4).
func (s *Sweeper) Run(ctx context.Context) ([]Resumed, error) {
	lock := models.NewLock(models.AutoExecuteLockID, s.selfWorldID, models.LockVariantNone)
	res, err := s.locks.Acquire(lock)
	if err != nil {
		return nil, fmt.Errorf("auto-execute: %w", err)
	}
	if !res.Acquired {
		return nil, nil
	}
	defer s.locks.Release(models.AutoExecuteLockID, s.selfWorldID)

	var resumed []Resumed

	planned, err := s.plansInState(models.PlanStatePlanned)
	if err != nil {
		return nil, err
	}
	for _, p := range planned {
		ok, err := s.resumeIfUnlocked(ctx, p)
		if err != nil {
			return nil, err
		}
		if ok {
			resumed = append(resumed, Resumed{PlanID: p.ID})
		}
	}

	running, err := s.plansInState(models.PlanStateRunning)
	if err != nil {
		return nil, err
	}
	for _, p := range running {
		ok, err := s.resumeIfUnlocked(ctx, p)
		if err != nil {
			return nil, err
		}
		if ok {
			resumed = append(resumed, Resumed{PlanID: p.ID})
		}
	}

	// Plans the invalidator paused for lack of a live executor (§4.4.3.b)
	// sit here with result=pending until a sweep picks them back up; only
	// the paused+error case (user must intervene) is excluded, below.
	paused, err := s.plansInState(models.PlanStatePaused)
	if err != nil {
		return nil, err
	}
	for _, p := range paused {
		ok, err := s.resumeIfUnlocked(ctx, p)
		if err != nil {
			return nil, err
		}
		if ok {
			resumed = append(resumed, Resumed{PlanID: p.ID})
		}
	}

	return resumed, nil
}

func (s *Sweeper) plansInState(state models.PlanState) ([]models.ExecutionPlan, error) {
	all, err := s.store.FindPlans(store.PlanFilter{State: state})
	if err != nil {
		return nil, fmt.Errorf("auto-execute: list %s plans: %w", state, err)
	}
	return all, nil
}

// resumeIfUnlocked skips plans paused with result=error (§4.5.3, user must
// intervene) and plans that already have a live execution lock, then
// acquires one for this world and dispatches.
func (s *Sweeper) resumeIfUnlocked(ctx context.Context, plan models.ExecutionPlan) (bool, error) {
	if plan.State == models.PlanStatePaused && plan.Result == models.PlanResultError {
		return false, nil
	}

	lockID := models.ExecutionPlanLockID(plan.ID)
	existing, err := s.locks.Find(store.LockFilter{IDPrefix: lockID})
	if err != nil {
		return false, fmt.Errorf("auto-execute: check lock for plan %s: %w", plan.ID, err)
	}
	for _, l := range existing {
		if l.Variant == models.LockVariantExecution {
			return false, nil
		}
	}

	lock := models.NewLock(lockID, s.selfWorldID, models.LockVariantExecution)
	res, err := s.locks.Acquire(lock)
	if err != nil {
		return false, fmt.Errorf("auto-execute: acquire lock for plan %s: %w", plan.ID, err)
	}
	if !res.Acquired {
		return false, nil
	}

	if err := s.store.AppendHistory(plan.ID, models.EventStartExecution, s.selfWorldID, time.Now()); err != nil {
		return false, fmt.Errorf("auto-execute: history for plan %s: %w", plan.ID, err)
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, plan.ID, s.selfWorldID); err != nil {
			return false, fmt.Errorf("auto-execute: dispatch plan %s: %w", plan.ID, err)
		}
	}
	return true, nil
}
