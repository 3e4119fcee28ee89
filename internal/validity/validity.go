// Package validity implements the validity checker (§4.6): the startup and
// on-demand sweeps that mark stale worlds invalid (optionally invalidating
// them) and release orphaned locks.
package validity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/invalidator"
	"github.com/harrison/conductor/internal/locktable"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/registry"
	"github.com/harrison/conductor/internal/store"
)

// Status is the per-world outcome of WorldsValidityCheck.
type Status string

const (
	StatusValid       Status = "valid"
	StatusInvalid     Status = "invalid"
	StatusInvalidated Status = "invalidated"
)

// Filter restricts which worlds WorldsValidityCheck considers.
type Filter struct {
	Kind models.WorldKind // empty matches any kind
}

// Checker runs the worlds and locks validity checks (§4.6).
type Checker struct {
	store    *store.Store
	locks    *locktable.Table
	registry *registry.Registry
	inv      *invalidator.Invalidator
	timeout  time.Duration
}

// New returns a Checker. inv may be nil if the caller never intends to pass
// invalidate=true to WorldsValidityCheck.
func New(s *store.Store, locks *locktable.Table, reg *registry.Registry, inv *invalidator.Invalidator, timeout time.Duration) *Checker {
	return &Checker{store: s, locks: locks, registry: reg, inv: inv, timeout: timeout}
}

// WorldsValidityCheck scans the registry, marking stale worlds invalid; when
// invalidate is true it additionally runs invalidate() on each and upgrades
// its status to invalidated (§4.6).
func (c *Checker) WorldsValidityCheck(ctx context.Context, invalidate bool, filter Filter) (map[uuid.UUID]Status, error) {
	worlds, err := c.registry.Find(registry.Filter{Kind: filter.Kind})
	if err != nil {
		return nil, fmt.Errorf("worlds validity check: %w", err)
	}

	now := time.Now()
	result := make(map[uuid.UUID]Status, len(worlds))
	for _, w := range worlds {
		if !w.IsStale(now, c.timeout) {
			result[w.ID] = StatusValid
			continue
		}

		result[w.ID] = StatusInvalid
		if !invalidate {
			continue
		}
		if c.inv == nil {
			continue
		}
		if err := c.inv.Invalidate(ctx, w.ID); err != nil {
			return result, fmt.Errorf("worlds validity check: invalidate %s: %w", w.ID, err)
		}
		result[w.ID] = StatusInvalidated
	}
	return result, nil
}

// LocksValidityCheck finds and releases every orphan lock (§4.6): one whose
// owner is absent from the registry, or a singleton-action lock whose
// referenced plan is missing, stopped, or paused with a non-pending result.
func (c *Checker) LocksValidityCheck() ([]models.Lock, error) {
	all, err := c.locks.Find(store.LockFilter{})
	if err != nil {
		return nil, fmt.Errorf("locks validity check: %w", err)
	}

	var orphans []models.Lock
	for _, l := range all {
		orphan, err := c.isOrphan(l)
		if err != nil {
			return nil, err
		}
		if orphan {
			orphans = append(orphans, l)
		}
	}

	return c.CleanOrphanedLocks(orphans)
}

func (c *Checker) isOrphan(l models.Lock) (bool, error) {
	if l.OwnerWorldID != nil {
		_, err := c.registry.Load(*l.OwnerWorldID)
		if err != nil {
			if models.IsNotFound(err) {
				return true, nil
			}
			return false, fmt.Errorf("locks validity check: load owner %s: %w", *l.OwnerWorldID, err)
		}
	}

	if l.Class != models.LockClassSingletonAction {
		return false, nil
	}
	if l.PlanID == nil {
		return false, nil
	}
	plan, err := c.store.LoadPlan(*l.PlanID)
	if err != nil {
		if models.IsNotFound(err) {
			return true, nil
		}
		return false, fmt.Errorf("locks validity check: load plan %s: %w", *l.PlanID, err)
	}
	if plan.State == models.PlanStateStopped {
		return true, nil
	}
	if plan.State == models.PlanStatePaused && plan.Result != models.PlanResultPending {
		return true, nil
	}
	return false, nil
}

// CleanOrphanedLocks releases the given locks unconditionally and returns
// the ones actually released (a lock that was concurrently released by
// someone else is simply omitted, not an error).
func (c *Checker) CleanOrphanedLocks(orphans []models.Lock) ([]models.Lock, error) {
	var released []models.Lock
	for _, l := range orphans {
		ok, err := c.locks.ForceRelease(l.ID)
		if err != nil {
			return released, fmt.Errorf("clean orphaned locks: release %s: %w", l.ID, err)
		}
		if ok {
			released = append(released, l)
		}
	}
	return released, nil
}
