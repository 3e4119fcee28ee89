// Package contract defines the external collaborators this module assumes
// but does not implement the internals of: the planner/runtime executor and
// the inter-world transport. Each is a narrow interface plus an in-process
// reference implementation used by tests and by the single-binary CLI mode.
package contract

import "github.com/google/uuid"

// Kind tags the payload carried by a Message.
type Kind string

const (
	// KindInvalidate asks the receiving world to run invalidate(targetWorldID).
	KindInvalidate Kind = "invalidate"
	// KindAutoExecute asks the receiving world to run its auto-execute sweep.
	KindAutoExecute Kind = "auto_execute"
	// KindExecutePlan asks the receiving world to begin executing a plan.
	KindExecutePlan Kind = "execute_plan"
	// KindPlanUpdated notifies that a plan's state changed.
	KindPlanUpdated Kind = "plan_updated"
)

// Message is the tagged sum type dispatched between worlds, replacing the
// [method, ...args] tuple shape of a dynamic-language actor mailbox.
type Message struct {
	Kind    Kind
	PlanID  uuid.UUID
	WorldID uuid.UUID
}

// Handlers holds one handler func per message Kind. Dispatch invokes at most
// one of them; a zero Handlers field for msg.Kind is a no-op.
type Handlers struct {
	OnInvalidate  func(targetWorldID uuid.UUID)
	OnAutoExecute func()
	OnExecutePlan func(planID uuid.UUID)
	OnPlanUpdated func(planID uuid.UUID)
}

// Dispatch calls the handler in h matching msg.Kind.
func Dispatch(msg Message, h Handlers) {
	switch msg.Kind {
	case KindInvalidate:
		if h.OnInvalidate != nil {
			h.OnInvalidate(msg.WorldID)
		}
	case KindAutoExecute:
		if h.OnAutoExecute != nil {
			h.OnAutoExecute()
		}
	case KindExecutePlan:
		if h.OnExecutePlan != nil {
			h.OnExecutePlan(msg.PlanID)
		}
	case KindPlanUpdated:
		if h.OnPlanUpdated != nil {
			h.OnPlanUpdated(msg.PlanID)
		}
	}
}
