package contract

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/store"
)

// Executor runs the steps of a plan. The core never schedules steps itself
// (out of scope, §9 non-goals); it only starts/stops execution and observes
// state transitions the external executor reports back.
type Executor interface {
	// Execute begins running planID and returns a channel of plan snapshots
	// as its state changes, closed when the plan reaches a terminal state
	// or ctx is canceled.
	Execute(ctx context.Context, planID uuid.UUID) (<-chan models.ExecutionPlan, error)
	// Terminate stops any in-flight execution started by this Executor.
	Terminate(ctx context.Context) error
}

// InProcessExecutor is a deterministic, in-memory reference Executor used by
// tests and by the CLI's single-binary mode. It immediately marks every
// step it's handed as successful and reports the plan as stopped.
//
// A plan can reach Execute either because a caller explicitly Seed()ed it
// (tests do this) or because the CLI wired this executor to a backing
// store: on a miss, it loads the plan from store directly rather than
// failing NotFound, so a single long-lived instance can serve any plan the
// invalidator or auto-execute sweep hands it without the caller needing to
// pre-enumerate every in-flight plan first.
type InProcessExecutor struct {
	mu      sync.Mutex
	plans   map[uuid.UUID]models.ExecutionPlan
	store   *store.Store
	stopped bool
}

// NewInProcessExecutor returns an InProcessExecutor with no backing store;
// plans must be Seed()ed before Execute can run them. Used by tests that
// want full control over what the executor knows about.
func NewInProcessExecutor() *InProcessExecutor {
	return &InProcessExecutor{plans: make(map[uuid.UUID]models.ExecutionPlan)}
}

// NewStoreBackedExecutor returns an InProcessExecutor that falls back to
// loading an unseeded plan from s when Execute is asked to run it. This is
// what the CLI wires up, since it can't know in advance which plan id a
// dispatch will name.
func NewStoreBackedExecutor(s *store.Store) *InProcessExecutor {
	return &InProcessExecutor{plans: make(map[uuid.UUID]models.ExecutionPlan), store: s}
}

// Seed registers a plan snapshot this executor can later Execute.
func (e *InProcessExecutor) Seed(plan models.ExecutionPlan) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plans[plan.ID] = plan
}

// Execute runs planID to completion in a background goroutine, emitting one
// snapshot per step plus a final terminal snapshot, then closes the channel.
func (e *InProcessExecutor) Execute(ctx context.Context, planID uuid.UUID) (<-chan models.ExecutionPlan, error) {
	e.mu.Lock()
	plan, ok := e.plans[planID]
	e.mu.Unlock()
	if !ok && e.store != nil {
		loaded, err := e.store.LoadPlan(planID)
		if err == nil {
			plan = loaded
			ok = true
			e.Seed(plan)
		}
	}
	if !ok {
		return nil, models.NotFoundf("plan %s", planID)
	}

	out := make(chan models.ExecutionPlan, len(plan.Steps)+1)
	go func() {
		defer close(out)
		for i := range plan.Steps {
			select {
			case <-ctx.Done():
				return
			default:
			}
			plan.Steps[i].State = models.StepStateSuccess
			select {
			case out <- plan:
			case <-ctx.Done():
				return
			}
		}
		plan.State = models.PlanStateStopped
		plan.Result = models.PlanResultSuccess
		select {
		case out <- plan:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// Terminate marks this executor as stopped; subsequent Execute calls still
// function since this reference implementation has no persistent workers to
// tear down.
func (e *InProcessExecutor) Terminate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	return nil
}
