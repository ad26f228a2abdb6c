package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
	"github.com/jvegaf/symphony-engine/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)

	err := s.WithRead(context.Background(), func(db *sql.DB) error {
		var name string
		return db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='tracks'`).Scan(&name)
	})
	require.NoError(t, err)
}

func TestWithWriteRejectsNestedWrite(t *testing.T) {
	s := openTestStore(t)

	err := s.WithWrite(context.Background(), func(tx *sql.Tx) error {
		return s.WithWrite(context.Background(), func(*sql.Tx) error { return nil })
	})
	require.Error(t, err)
	require.Equal(t, engineerr.KindConflict, engineerr.KindOf(err))
}

func TestWithWriteRollsBackOnError(t *testing.T) {
	s := openTestStore(t)

	boom := engineerr.New(engineerr.KindValidation, engineerr.OpTrackInsert)
	err := s.WithWrite(context.Background(), func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`INSERT INTO tracks (id, path, duration_secs, date_added, date_modified)
			VALUES ('id-1', '/music/a.mp3', 120, 1, 1)`)
		require.NoError(t, execErr)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	err = s.WithRead(context.Background(), func(db *sql.DB) error {
		return db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&count)
	})
	require.NoError(t, err)
	require.Zero(t, count)
}
