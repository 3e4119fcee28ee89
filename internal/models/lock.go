package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// LockClass categorizes a Lock by the kind of resource it protects (§3).
type LockClass string

const (
	// LockClassWorldInvalidation serializes reclamation of one target world.
	LockClassWorldInvalidation LockClass = "world-invalidation"
	// LockClassExecutionPlan is held by whoever owns a plan's planning or
	// execution phase. At most one is active per plan at any time.
	LockClassExecutionPlan LockClass = "execution-plan"
	// LockClassSingletonAction is held while a uniquely-named action is
	// in flight anywhere in the cluster.
	LockClassSingletonAction LockClass = "singleton-action"
	// LockClassAutoExecute is the cluster-wide singleton auto-execute sweep lock.
	LockClassAutoExecute LockClass = "auto-execute"
	// LockClassDelayedExecutor is held by a world running the delayed-dispatch role.
	LockClassDelayedExecutor LockClass = "delayed-executor"
)

// LockVariant distinguishes the two ways an execution-plan lock can be held.
type LockVariant string

const (
	// LockVariantNone applies to lock classes with no planning/execution split.
	LockVariantNone LockVariant = ""
	// LockVariantPlanning is held by the client world materializing a plan.
	LockVariantPlanning LockVariant = "planning"
	// LockVariantExecution is held by the executor world running a plan.
	LockVariantExecution LockVariant = "execution"
)

// Lock is a durable, named lock over a shared resource (§3). Every lock
// except auto-execute references a world id, a plan id, or both; a
// reference to a world or plan that no longer exists makes the lock a
// reclaimable orphan (§4.6).
type Lock struct {
	ID      string
	Class   LockClass
	Variant LockVariant

	// OwnerWorldID is set for every lock built by NewLock; it is nil only
	// for a stored row with no owner. Deregistering the owning world does
	// not clear it, which is how the validity checker spots orphans.
	OwnerWorldID *uuid.UUID

	// PlanID is set for execution-plan locks (derived from the lock id) and
	// for singleton-action locks (carried as payload, since the id itself
	// carries the action's class name instead — §3: "Payload records the
	// owning plan id so orphans can be detected").
	PlanID *uuid.UUID

	// ClassName is set for singleton-action locks: the action class the
	// lock uniquely serializes.
	ClassName string

	// Version is the optimistic-concurrency token for this row.
	Version int64
}

// WorldInvalidationLockID returns the lock id for serializing reclamation
// of the given world.
func WorldInvalidationLockID(worldID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", LockClassWorldInvalidation, worldID)
}

// ExecutionPlanLockID returns the lock id for a plan's planning/execution lock.
func ExecutionPlanLockID(planID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", LockClassExecutionPlan, planID)
}

// SingletonActionLockID returns the lock id for a uniquely-named action class.
func SingletonActionLockID(className string) string {
	return fmt.Sprintf("%s:%s", LockClassSingletonAction, className)
}

// AutoExecuteLockID is the fixed id of the cluster-wide auto-execute lock.
const AutoExecuteLockID = string(LockClassAutoExecute)

// DelayedExecutorLockID returns the lock id for a world's delayed-dispatch role.
func DelayedExecutorLockID(worldID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", LockClassDelayedExecutor, worldID)
}

// ClassifyLockID derives the LockClass and, for execution-plan locks, the
// referenced plan id from a fully-qualified lock id string such as
// "execution-plan:3fa...".
func ClassifyLockID(id string) (LockClass, string) {
	parts := strings.SplitN(id, ":", 2)
	class := LockClass(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return class, payload
}

// NewLock constructs a Lock from its fully-qualified id, deriving Class and,
// for execution-plan locks, PlanID from the id's prefix. Singleton-action
// locks carry their class name in the id and must have PlanID set
// separately via WithPlanID, since the id alone cannot name both.
func NewLock(id string, owner uuid.UUID, variant LockVariant) Lock {
	class, payload := ClassifyLockID(id)
	lock := Lock{
		ID:           id,
		Class:        class,
		Variant:      variant,
		OwnerWorldID: &owner,
	}
	switch class {
	case LockClassExecutionPlan:
		if pid, err := uuid.Parse(payload); err == nil {
			lock.PlanID = &pid
		}
	case LockClassSingletonAction:
		lock.ClassName = payload
	}
	return lock
}

// WithPlanID returns a copy of the lock with PlanID set, used for
// singleton-action locks where the owning plan isn't derivable from the id.
func (l Lock) WithPlanID(planID uuid.UUID) Lock {
	l.PlanID = &planID
	return l
}
