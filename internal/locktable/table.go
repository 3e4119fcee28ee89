// Package locktable implements the durable lock table (§4.2): acquire,
// release and filtered lookup of named locks, serialized per lock id both
// within this process (via an in-memory gate) and across the cluster (via
// internal/store's durable rows).
package locktable

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/store"
)

// Result is the outcome of an Acquire call.
type Result struct {
	// Acquired is true when the caller now owns the lock.
	Acquired bool
	// HeldBy is the current owner when Acquired is false.
	HeldBy *models.Lock
}

// Table is a durable lock table backed by a Store, with a process-local gate
// preventing two in-process goroutines from racing the same lock id, and an
// observable Log recording every successful acquire/release in order.
type Table struct {
	store *store.Store
	gate  *gate
	log   Log
}

// New returns a Table backed by s.
func New(s *store.Store) *Table {
	return &Table{store: s, gate: newGate()}
}

// Log returns the table's observable lock log (§4.2).
func (t *Table) Log() *Log {
	return &t.log
}

// Acquire attempts to take lock. Serializable per lock.ID: a concurrent
// caller in this process blocks on the gate until this call returns, and the
// durable store row resolves cross-process contention.
func (t *Table) Acquire(lock models.Lock) (Result, error) {
	t.gate.lock(lock.ID)
	defer t.gate.unlock(lock.ID)

	held, err := t.store.AcquireLock(lock)
	if err != nil {
		return Result{}, fmt.Errorf("acquire %s: %w", lock.ID, err)
	}
	if held != nil {
		return Result{Acquired: false, HeldBy: held}, nil
	}
	t.log.recordLock(lock.ID)
	return Result{Acquired: true}, nil
}

// Release releases lockID if expectedOwner currently holds it. Returns
// (false, nil) if the lock was already free; ErrConflict if held by a
// different owner.
func (t *Table) Release(lockID string, expectedOwner uuid.UUID) (bool, error) {
	t.gate.lock(lockID)
	defer t.gate.unlock(lockID)

	released, err := t.store.ReleaseLock(lockID, expectedOwner)
	if err != nil {
		return false, fmt.Errorf("release %s: %w", lockID, err)
	}
	if released {
		t.log.recordUnlock(lockID)
	}
	return released, nil
}

// Transfer moves a lock from one owner to another (§4.4.3.b). When oldID and
// newID are identical (a plain ownership transfer, as the invalidator's
// reassignment does) the owner is changed in place, with no unheld window
// and no entry in the log. When they differ, oldID is released and newID is
// acquired as an execution lock for the new owner, and the log records an
// unlock of oldID followed by a lock of newID. A plan's planning and
// execution locks share one id, so a planning-to-execution handoff of the
// same plan takes the identical-id path.
func (t *Table) Transfer(oldID, newID string, from, to uuid.UUID) error {
	t.gate.lock(oldID)
	defer t.gate.unlock(oldID)
	if newID != oldID {
		t.gate.lock(newID)
		defer t.gate.unlock(newID)
	}

	if oldID == newID {
		if err := t.store.TransferLockOwner(oldID, from, to); err != nil {
			return fmt.Errorf("transfer %s: %w", oldID, err)
		}
		return nil
	}

	released, err := t.store.ReleaseLock(oldID, from)
	if err != nil {
		return fmt.Errorf("transfer %s -> %s: %w", oldID, newID, err)
	}
	if !released {
		return models.Conflictf("lock %s not held by %s", oldID, from)
	}
	t.log.recordUnlock(oldID)

	newLock := models.NewLock(newID, to, models.LockVariantExecution)
	held, err := t.store.AcquireLock(newLock)
	if err != nil {
		return fmt.Errorf("transfer %s -> %s: %w", oldID, newID, err)
	}
	if held != nil {
		return models.Conflictf("lock %s already held by %s", newID, held.OwnerWorldID)
	}
	t.log.recordLock(newID)
	return nil
}

// ForceRelease releases lockID regardless of its recorded owner, recording
// the release in the log if the lock actually existed. Used by the validity
// checker to reclaim orphan locks.
func (t *Table) ForceRelease(lockID string) (bool, error) {
	t.gate.lock(lockID)
	defer t.gate.unlock(lockID)

	released, err := t.store.ForceReleaseLock(lockID)
	if err != nil {
		return false, fmt.Errorf("force release %s: %w", lockID, err)
	}
	if released {
		t.log.recordUnlock(lockID)
	}
	return released, nil
}

// Find returns every lock matching filter.
func (t *Table) Find(filter store.LockFilter) ([]models.Lock, error) {
	locks, err := t.store.FindLocks(filter)
	if err != nil {
		return nil, fmt.Errorf("find locks: %w", err)
	}
	return locks, nil
}

// Sweep evicts idle in-process gate entries. Safe to call periodically from
// a world's background maintenance loop.
func (t *Table) Sweep() {
	t.gate.sweep()
}
