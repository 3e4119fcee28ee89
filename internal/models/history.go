package models

import (
	"time"

	"github.com/google/uuid"
)

// History event names written by the invalidator and auto-execute sweep (§3).
const (
	EventTerminateExecution = "terminate execution"
	EventStartExecution     = "start execution"
	EventFinishExecution    = "finish execution"
	EventPauseExecution     = "pause execution"
)

// HistoryEvent is a single append-only entry in a plan's execution history.
type HistoryEvent struct {
	Name      string
	WorldID   uuid.UUID
	Timestamp time.Time
}

// NewHistoryEvent constructs a HistoryEvent stamped at the given time. The
// caller (internal/store) is responsible for ensuring Timestamp is
// non-decreasing relative to the plan's existing history (invariant 4).
func NewHistoryEvent(name string, worldID uuid.UUID, at time.Time) HistoryEvent {
	return HistoryEvent{Name: name, WorldID: worldID, Timestamp: at}
}
