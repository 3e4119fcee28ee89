// Package registry implements the world registry (§4.3): registration,
// heartbeat, deregistration and staleness-filtered lookup of the worlds
// sharing a cluster's persistence backend.
package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/store"
)

// Registry wraps a Store with the world-lifecycle operations of §4.3.
type Registry struct {
	store *store.Store
}

// New returns a Registry backed by s.
func New(s *store.Store) *Registry {
	return &Registry{store: s}
}

// Register records a world joining the cluster, or refreshes its row if it
// is already registered under the same id.
func (r *Registry) Register(w models.World) error {
	if err := r.store.RegisterWorld(w); err != nil {
		return fmt.Errorf("register world %s: %w", w.ID, err)
	}
	return nil
}

// Heartbeat refreshes a world's last-seen timestamp. ErrNotFound if the
// world isn't registered.
func (r *Registry) Heartbeat(worldID uuid.UUID, now time.Time) error {
	if err := r.store.Heartbeat(worldID, now); err != nil {
		return fmt.Errorf("heartbeat world %s: %w", worldID, err)
	}
	return nil
}

// Deregister removes a world's registration row (§4.4 step 2). Deregistering
// an absent world is not an error.
func (r *Registry) Deregister(worldID uuid.UUID) error {
	if err := r.store.DeregisterWorld(worldID); err != nil {
		return fmt.Errorf("deregister world %s: %w", worldID, err)
	}
	return nil
}

// Load returns a single world by id, or ErrNotFound.
func (r *Registry) Load(worldID uuid.UUID) (models.World, error) {
	w, err := r.store.LoadWorld(worldID)
	if err != nil {
		return models.World{}, fmt.Errorf("load world %s: %w", worldID, err)
	}
	return w, nil
}

// Filter restricts Find.
type Filter struct {
	Kind models.WorldKind // empty matches any kind
}

// Find returns every registered world matching filter.
func (r *Registry) Find(filter Filter) ([]models.World, error) {
	worlds, err := r.store.FindWorlds(store.WorldFilter{Kind: filter.Kind})
	if err != nil {
		return nil, fmt.Errorf("find worlds: %w", err)
	}
	return worlds, nil
}

// FindStale returns every registered world whose LastSeen is more than
// timeout in the past as of now (§4.3: "stale when now - last_seen >
// validity_timeout").
func (r *Registry) FindStale(now time.Time, timeout time.Duration) ([]models.World, error) {
	all, err := r.store.FindWorlds(store.WorldFilter{})
	if err != nil {
		return nil, fmt.Errorf("find stale worlds: %w", err)
	}
	var stale []models.World
	for _, w := range all {
		if w.IsStale(now, timeout) {
			stale = append(stale, w)
		}
	}
	return stale, nil
}

// IsAlive reports whether worldID is registered and not stale as of now.
// Used by the invalidator (§4.4.3.b) to decide whether a live executor
// exists to reassign an execution lock to.
func (r *Registry) IsAlive(worldID uuid.UUID, now time.Time, timeout time.Duration) (bool, error) {
	w, err := r.store.LoadWorld(worldID)
	if err != nil {
		if models.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check world %s liveness: %w", worldID, err)
	}
	return !w.IsStale(now, timeout), nil
}

// FindLiveExecutor returns a live (non-stale) executor world other than
// exclude, if any exists. Used by the invalidator to find a reassignment
// target for an orphaned execution lock.
func (r *Registry) FindLiveExecutor(now time.Time, timeout time.Duration, exclude uuid.UUID) (*models.World, error) {
	executors, err := r.Find(Filter{Kind: models.WorldKindExecutor})
	if err != nil {
		return nil, err
	}
	for _, w := range executors {
		if w.ID == exclude {
			continue
		}
		if !w.IsStale(now, timeout) {
			world := w
			return &world, nil
		}
	}
	return nil, nil
}
