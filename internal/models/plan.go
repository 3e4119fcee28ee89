package models

import (
	"github.com/google/uuid"
)

// PlanState is the lifecycle state of an ExecutionPlan (§3). Legal
// transitions form the DAG encoded in validTransitions.
type PlanState string

const (
	PlanStatePlanning  PlanState = "planning"
	PlanStatePlanned   PlanState = "planned"
	PlanStateScheduled PlanState = "scheduled"
	PlanStateRunning   PlanState = "running"
	PlanStatePaused    PlanState = "paused"
	PlanStateStopped   PlanState = "stopped"
)

// PlanResult is the terminal/ongoing outcome of a plan, independent of state.
type PlanResult string

const (
	PlanResultPending PlanResult = "pending"
	PlanResultSuccess PlanResult = "success"
	PlanResultWarning PlanResult = "warning"
	PlanResultError   PlanResult = "error"
)

// RescueStrategy is a per-plan policy consulted by the invalidator when
// cleaning up a crashed plan (§4.4, §GLOSSARY). The planner (external, out
// of scope) sets this when it materializes the plan; the core only reads it.
type RescueStrategy string

const (
	// RescueDefault reassigns a crashed plan's execution to a live executor.
	RescueDefault RescueStrategy = "default"
	// RescueSkip marks remaining running, pending and error steps skipped
	// and stops the plan instead of reassigning it.
	RescueSkip RescueStrategy = "skip"
)

// validTransitions encodes the DAG from §3. A transition not listed here is
// illegal and must never be written by any coordination package.
var validTransitions = map[PlanState]map[PlanState]bool{
	PlanStatePlanning: {PlanStatePlanned: true, PlanStateStopped: true},
	PlanStatePlanned:  {PlanStateRunning: true},
	PlanStateRunning:  {PlanStateStopped: true, PlanStatePaused: true, PlanStateRunning: true},
	PlanStatePaused:   {PlanStateRunning: true},
	PlanStateStopped:  {},
}

// CanTransition reports whether moving from 'from' to 'to' is legal per the
// state DAG in §3. Invariant 3 (conservation of plan state) follows from
// this: PlanStateStopped has no outgoing transitions.
func CanTransition(from, to PlanState) bool {
	next, ok := validTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether state admits no further transitions.
func IsTerminal(state PlanState) bool {
	return state == PlanStateStopped
}

// ExecutionPlan is the durable record of a workflow instance (§3).
//
// Ownership: first the planning world (holding the planning-variant
// execution-plan lock), then the executor world (holding the
// execution-variant lock). A plan outlives either owner.
type ExecutionPlan struct {
	ID              uuid.UUID
	State           PlanState
	Result          PlanResult
	Steps           []Step
	History         []HistoryEvent
	PlannerWorldID  uuid.UUID
	ExecutorWorldID *uuid.UUID
	RescueStrategy  RescueStrategy
	Version         int64
}

// StepByID returns a pointer into p.Steps for the given step id, or nil.
func (p *ExecutionPlan) StepByID(id string) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// AnyStepNotPending reports whether at least one step has left the pending
// state — used by the invalidator to distinguish a plan that never started
// planning its steps from one that was mid-plan when its world died (§4.4.3a).
func (p *ExecutionPlan) AnyStepNotPending() bool {
	for _, s := range p.Steps {
		if s.State != StepStatePending {
			return true
		}
	}
	return false
}

// AppendHistory appends an event, preserving invariant 4 (history
// monotonicity): callers must supply non-decreasing timestamps, which
// internal/store enforces by stamping at write time.
func (p *ExecutionPlan) AppendHistory(event HistoryEvent) {
	p.History = append(p.History, event)
}
