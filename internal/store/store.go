// Package store implements the persistence gateway (§4.1): typed CRUD over
// plans, steps, locks, world records and execution history, backed by
// SQLite. It is the only package that issues SQL; every other coordination
// package talks to the cluster's shared state through it.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is a typed, SQLite-backed persistence gateway. Every mutation is
// atomic against concurrent readers on the same row (the sqlite3 driver
// serializes writers). SavePlan writes a plan row and its steps in one
// *sql.Tx; separate Store calls made in sequence by a caller (such as the
// invalidator's reassignment step) are not wrapped in a shared transaction.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dsn and applies
// the embedded schema. dsn may be ":memory:" for an ephemeral store, as used
// throughout this module's tests.
func Open(dsn string) (*Store, error) {
	if dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// The coordination protocols rely on one connection serializing writes
	// the way a single sqlite3 connection does; a pool would let two
	// goroutines race independent connections against the same file.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for callers that need to compose their
// own multi-statement transactions spanning locks and plans.
func (s *Store) DB() *sql.DB {
	return s.db
}
