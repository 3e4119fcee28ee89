package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/models"
)

// LockFilter restricts FindLocks (§4.2: "filterable by id prefix, owner, or class").
type LockFilter struct {
	IDPrefix string
	Owner    *uuid.UUID
	Class    models.LockClass // empty matches any class
}

// AcquireLock attempts to durably create the given lock row. Returns
// (nil, nil) on success, and the existing lock row when the id is already
// held. If that existing row cannot be loaded (for example because it was
// released between the failed insert and the read), an error is returned.
func (s *Store) AcquireLock(lock models.Lock) (held *models.Lock, err error) {
	var owner, planID interface{}
	if lock.OwnerWorldID != nil {
		owner = lock.OwnerWorldID.String()
	}
	if lock.PlanID != nil {
		planID = lock.PlanID.String()
	}

	_, err = s.db.Exec(
		`INSERT INTO locks (id, class, variant, owner_world_id, plan_id, class_name, version)
		 VALUES (?, ?, ?, ?, ?, ?, 1)`,
		lock.ID, string(lock.Class), string(lock.Variant), owner, planID, lock.ClassName,
	)
	if err == nil {
		return nil, nil
	}
	if !isUniqueViolation(err) {
		return nil, fmt.Errorf("acquire lock %s: %w", lock.ID, err)
	}

	existing, loadErr := s.loadLock(lock.ID)
	if loadErr != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lock.ID, loadErr)
	}
	return &existing, nil
}

// ReleaseLock removes a lock row if it is currently held by expectedOwner.
// Returns (false, nil) if the lock isn't held at all, and ErrConflict if it
// is held by a different owner.
func (s *Store) ReleaseLock(id string, expectedOwner uuid.UUID) (released bool, err error) {
	existing, loadErr := s.loadLock(id)
	if loadErr != nil {
		if models.IsNotFound(loadErr) {
			return false, nil
		}
		return false, fmt.Errorf("release lock %s: %w", id, loadErr)
	}
	if existing.OwnerWorldID == nil || *existing.OwnerWorldID != expectedOwner {
		return false, models.Conflictf("lock %s held by a different owner", id)
	}

	if _, err := s.db.Exec(`DELETE FROM locks WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("release lock %s: %w", id, err)
	}
	return true, nil
}

// ForceReleaseLock removes a lock row regardless of owner. Used only by the
// validity checker to reclaim orphan locks (§4.6), where the recorded owner
// may itself be stale or absent.
func (s *Store) ForceReleaseLock(id string) (released bool, err error) {
	res, err := s.db.Exec(`DELETE FROM locks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("force release lock %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("force release lock %s: %w", id, err)
	}
	return n > 0, nil
}

// TransferLockOwner atomically moves an execution-plan lock from one owner
// to another (§4.4.3.b reassignment), without an intervening window where
// the lock is unheld.
func (s *Store) TransferLockOwner(id string, from, to uuid.UUID) error {
	res, err := s.db.Exec(
		`UPDATE locks SET owner_world_id = ?, version = version + 1 WHERE id = ? AND owner_world_id = ?`,
		to.String(), id, from.String(),
	)
	if err != nil {
		return fmt.Errorf("transfer lock %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transfer lock %s: %w", id, err)
	}
	if n == 0 {
		return models.Conflictf("lock %s not held by %s", id, from)
	}
	return nil
}

func (s *Store) loadLock(id string) (models.Lock, error) {
	row := s.db.QueryRow(
		`SELECT id, class, variant, owner_world_id, plan_id, class_name, version FROM locks WHERE id = ?`, id,
	)
	return scanLock(row)
}

func scanLock(row rowScanner) (models.Lock, error) {
	var id, class, variant, className string
	var owner, planID sql.NullString
	var version int64
	if err := row.Scan(&id, &class, &variant, &owner, &planID, &className, &version); err != nil {
		if err == sql.ErrNoRows {
			return models.Lock{}, models.NotFoundf("lock %s", id)
		}
		return models.Lock{}, fmt.Errorf("scan lock: %w", err)
	}
	lock := models.Lock{
		ID:        id,
		Class:     models.LockClass(class),
		Variant:   models.LockVariant(variant),
		ClassName: className,
		Version:   version,
	}
	if owner.Valid && owner.String != "" {
		ownerID, err := uuid.Parse(owner.String)
		if err != nil {
			return models.Lock{}, fmt.Errorf("parse lock owner: %w", err)
		}
		lock.OwnerWorldID = &ownerID
	}
	if planID.Valid && planID.String != "" {
		pid, err := uuid.Parse(planID.String)
		if err != nil {
			return models.Lock{}, fmt.Errorf("parse lock plan id: %w", err)
		}
		lock.PlanID = &pid
	}
	return lock, nil
}

// FindLocks returns every lock matching filter.
func (s *Store) FindLocks(filter LockFilter) ([]models.Lock, error) {
	rows, err := s.db.Query(
		`SELECT id, class, variant, owner_world_id, plan_id, class_name, version FROM locks`,
	)
	if err != nil {
		return nil, fmt.Errorf("find locks: %w", err)
	}
	defer rows.Close()

	var locks []models.Lock
	for rows.Next() {
		lock, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		if filter.IDPrefix != "" && !strings.HasPrefix(lock.ID, filter.IDPrefix) {
			continue
		}
		if filter.Owner != nil && (lock.OwnerWorldID == nil || *lock.OwnerWorldID != *filter.Owner) {
			continue
		}
		if filter.Class != "" && lock.Class != filter.Class {
			continue
		}
		locks = append(locks, lock)
	}
	return locks, rows.Err()
}

// isUniqueViolation reports whether err is a SQLite primary-key/unique
// constraint violation, i.e. the lock id is already taken.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
