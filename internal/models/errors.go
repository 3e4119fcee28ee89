package models

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (§7). Every package wraps one of these with
// fmt.Errorf("...: %w", ...) at the point of detection so callers can use
// errors.Is across package boundaries without depending on concrete types.
var (
	// ErrNotFound is returned when a referenced plan, step, world or lock is
	// absent. Never fatal to the invalidator — it means "already reclaimed".
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an optimistic-concurrency token
	// mismatches, or an illegal state transition is attempted. Retried once
	// by the invalidator; a second conflict abandons that invalidation run.
	ErrConflict = errors.New("conflict")

	// ErrTransportFailure marks a failed send through the connector
	// contract. Logged, never aborts invalidation (the target is presumed
	// dead anyway).
	ErrTransportFailure = errors.New("transport failure")

	// ErrDataConsistency marks a plan that loads but whose steps are
	// missing, or other internally-inconsistent persisted state.
	ErrDataConsistency = errors.New("data consistency error")

	// ErrFatal marks persistence unavailability; the caller should treat
	// its world as degraded.
	ErrFatal = errors.New("fatal: persistence unavailable")
)

// NotFoundf wraps ErrNotFound with context, e.g. NotFoundf("plan %s", id).
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Conflictf wraps ErrConflict with context.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// TransportFailuref wraps ErrTransportFailure with context.
func TransportFailuref(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrTransportFailure)
}

// DataConsistencyf wraps ErrDataConsistency with context.
func DataConsistencyf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrDataConsistency)
}

// Fatalf wraps ErrFatal with context.
func Fatalf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrFatal)
}

// IsNotFound reports whether err (or any error it wraps) is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err (or any error it wraps) is ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
