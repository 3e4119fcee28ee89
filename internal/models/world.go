// Package models defines the durable entities shared by every coordination
// package: worlds, locks, execution plans, steps and history events. Types
// here carry no behavior beyond small invariant checks — persistence lives
// in internal/store, locking in internal/locktable, and the coordination
// protocols in internal/coordinator, internal/invalidator, internal/autoexec
// and internal/validity.
package models

import (
	"time"

	"github.com/google/uuid"
)

// WorldKind distinguishes a planning client from a step-executing world.
type WorldKind string

const (
	// WorldKindClient plans work (acquires planning locks) but never runs steps.
	WorldKindClient WorldKind = "client"
	// WorldKindExecutor runs plan steps (acquires execution locks).
	WorldKindExecutor WorldKind = "executor"
)

// World is a single live participant in the cluster.
//
// Invariant: at most one live registration per ID — internal/registry
// enforces this at the store layer.
type World struct {
	ID       uuid.UUID
	Kind     WorldKind
	Meta     map[string]string
	LastSeen time.Time
}

// IsStale reports whether the world's last heartbeat is older than timeout,
// measured against now. This is the sole staleness rule used by §4.3/§4.6.
func (w World) IsStale(now time.Time, timeout time.Duration) bool {
	return now.Sub(w.LastSeen) > timeout
}

// Clone returns a deep copy of w, so callers can mutate Meta without
// aliasing a cached registry entry.
func (w World) Clone() World {
	meta := make(map[string]string, len(w.Meta))
	for k, v := range w.Meta {
		meta[k] = v
	}
	return World{ID: w.ID, Kind: w.Kind, Meta: meta, LastSeen: w.LastSeen}
}
