package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/models"
)

// WorldFilter restricts FindWorlds. A zero-value filter matches every world.
type WorldFilter struct {
	Kind         models.WorldKind // empty matches any kind
	IncludeStale bool             // when false, StaleBefore is ignored and all worlds are returned
	StaleBefore  time.Time        // worlds with LastSeen before this are "stale" when IncludeStale is true
	OnlyStale    bool             // when true (and IncludeStale), only return stale worlds
}

// RegisterWorld inserts or replaces a world's registration row (§4.3). A
// world re-registering with the same id simply refreshes its heartbeat,
// preserving the "at most one live registration per id" invariant (§3).
func (s *Store) RegisterWorld(w models.World) error {
	meta, err := json.Marshal(w.Meta)
	if err != nil {
		return fmt.Errorf("marshal world meta: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO worlds (id, kind, meta, last_seen) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET kind=excluded.kind, meta=excluded.meta, last_seen=excluded.last_seen`,
		w.ID.String(), string(w.Kind), string(meta), w.LastSeen.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("register world %s: %w", w.ID, err)
	}
	return nil
}

// Heartbeat refreshes a world's last-seen timestamp. Returns ErrNotFound if
// the world isn't registered.
func (s *Store) Heartbeat(worldID uuid.UUID, now time.Time) error {
	res, err := s.db.Exec(`UPDATE worlds SET last_seen = ? WHERE id = ?`, now.UnixNano(), worldID.String())
	if err != nil {
		return fmt.Errorf("heartbeat world %s: %w", worldID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("heartbeat world %s: %w", worldID, err)
	}
	if n == 0 {
		return models.NotFoundf("world %s", worldID)
	}
	return nil
}

// DeregisterWorld removes a world's registration row, making it immediately
// invisible to subsequent FindWorlds calls (§4.4 step 2). Deregistering an
// absent world is not an error.
func (s *Store) DeregisterWorld(worldID uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM worlds WHERE id = ?`, worldID.String())
	if err != nil {
		return fmt.Errorf("deregister world %s: %w", worldID, err)
	}
	return nil
}

// LoadWorld returns a single world by id, or ErrNotFound.
func (s *Store) LoadWorld(worldID uuid.UUID) (models.World, error) {
	row := s.db.QueryRow(`SELECT id, kind, meta, last_seen FROM worlds WHERE id = ?`, worldID.String())
	w, err := scanWorld(row)
	if err != nil {
		return models.World{}, err
	}
	return w, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorld(row rowScanner) (models.World, error) {
	var idStr, kindStr, metaStr string
	var lastSeenNanos int64
	if err := row.Scan(&idStr, &kindStr, &metaStr, &lastSeenNanos); err != nil {
		if err == sql.ErrNoRows {
			return models.World{}, models.NotFoundf("world")
		}
		return models.World{}, fmt.Errorf("scan world: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return models.World{}, fmt.Errorf("parse world id %q: %w", idStr, err)
	}
	meta := map[string]string{}
	if metaStr != "" {
		if err := json.Unmarshal([]byte(metaStr), &meta); err != nil {
			return models.World{}, fmt.Errorf("unmarshal world meta: %w", err)
		}
	}
	return models.World{
		ID:       id,
		Kind:     models.WorldKind(kindStr),
		Meta:     meta,
		LastSeen: time.Unix(0, lastSeenNanos),
	}, nil
}

// FindWorlds returns every registered world matching filter.
func (s *Store) FindWorlds(filter WorldFilter) ([]models.World, error) {
	rows, err := s.db.Query(`SELECT id, kind, meta, last_seen FROM worlds`)
	if err != nil {
		return nil, fmt.Errorf("find worlds: %w", err)
	}
	defer rows.Close()

	var worlds []models.World
	for rows.Next() {
		w, err := scanWorld(rows)
		if err != nil {
			return nil, err
		}
		if filter.Kind != "" && w.Kind != filter.Kind {
			continue
		}
		if filter.IncludeStale && filter.OnlyStale {
			if !w.LastSeen.Before(filter.StaleBefore) {
				continue
			}
		}
		worlds = append(worlds, w)
	}
	return worlds, rows.Err()
}
