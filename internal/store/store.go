// Package store wraps the embedded catalog database: connection setup,
// schema migrations, and the single-writer transaction discipline every
// other component builds on.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

const (
	appName    = "symphony-engine"
	dbFileName = "catalog.db"
)

// Store owns the single database handle and the writer lock. Catalog,
// Analysis, Waveform Cache, and Consolidator all borrow it through
// WithRead/WithWrite rather than touching *sql.DB directly.
type Store struct {
	db *sql.DB

	writeMu  sync.Mutex
	writing  bool
	writingM sync.Mutex
}

// DefaultPath resolves the catalog file's default location under the
// user's XDG data directory, mirroring the teacher's getDBPath.
func DefaultPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}

// Open opens (creating if absent) the catalog file at path, applies
// pending migrations in a single transaction, and returns a handle. If
// path is empty, DefaultPath is used.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreOpen, err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreOpen, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreOpen, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreOpen, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for packages (catalog, analysis, waveform,
// consolidate) that need to prepare their own statements within a
// WithRead/WithWrite scope. Callers must not retain it beyond the scope.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithRead runs fn against the store's database handle. The handle is
// capped at one connection (SetMaxOpenConns(1) in Open), so reads
// serialize with each other and wait behind any in-flight write
// transaction.
func (s *Store) WithRead(_ context.Context, fn func(*sql.DB) error) error {
	if err := fn(s.db); err != nil {
		return classifyReadErr(err)
	}
	return nil
}

// WithWrite runs fn inside a transaction while holding the exclusive
// writer lock. Nested writes (calling WithWrite again from within fn)
// are rejected with Conflict rather than deadlocking.
func (s *Store) WithWrite(_ context.Context, fn func(*sql.Tx) error) error {
	s.writingM.Lock()
	if s.writing {
		s.writingM.Unlock()
		return engineerr.New(engineerr.KindConflict, engineerr.OpStoreWrite)
	}
	s.writing = true
	s.writingM.Unlock()

	s.writeMu.Lock()
	defer func() {
		s.writeMu.Unlock()
		s.writingM.Lock()
		s.writing = false
		s.writingM.Unlock()
	}()

	tx, err := s.db.Begin()
	if err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreWrite, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return classifyWriteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreWrite, err)
	}
	return nil
}

// classifyReadErr and classifyWriteErr leave already-typed *engineerr.Error
// values alone and wrap everything else as StoreUnavailable, per §7's
// propagation policy (engine code never raises untyped errors across a
// transaction boundary).
func classifyReadErr(err error) error {
	var e *engineerr.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return engineerr.Wrap(engineerr.KindNotFound, engineerr.OpStoreRead, err)
	}
	return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreRead, err)
}

func classifyWriteErr(err error) error {
	var e *engineerr.Error
	if errors.As(err, &e) {
		return err
	}
	return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreWrite, err)
}

// Vacuum reclaims space from deleted rows. It runs outside any
// transaction (SQLite refuses VACUUM inside one) and is used by the
// Consolidator as its final phase.
func (s *Store) Vacuum(_ context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreWrite, err)
	}
	return nil
}

// NullInt64ToPtr converts a sql.NullInt64 to *int64.
func NullInt64ToPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// NullStringToPtr converts a sql.NullString to *string.
func NullStringToPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

// NullFloat64ToPtr converts a sql.NullFloat64 to *float64.
func NullFloat64ToPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
