package store

import (
	"database/sql"
	"fmt"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// currentSchemaVersion is the highest migration this binary knows how to
// apply. open refuses to run against a catalog file stamped with a higher
// version than this (SchemaTooNew), per §4.1.
const currentSchemaVersion = 1

// migration is one forward-only, idempotent schema step.
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS schema_meta (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				version INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS tracks (
				row_id INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				path TEXT NOT NULL UNIQUE,
				title TEXT NOT NULL DEFAULT '',
				artist TEXT NOT NULL DEFAULT '',
				album TEXT,
				genre TEXT,
				year INTEGER,
				duration_secs REAL NOT NULL DEFAULT 0,
				bitrate INTEGER,
				bpm REAL,
				key TEXT,
				rating INTEGER NOT NULL DEFAULT 0 CHECK (rating BETWEEN 0 AND 5),
				beatport_id TEXT,
				tags_fixed INTEGER NOT NULL DEFAULT 0,
				content_fingerprint TEXT NOT NULL DEFAULT '',
				date_added INTEGER NOT NULL,
				date_modified INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist)`,
			`CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album)`,
			`CREATE INDEX IF NOT EXISTS idx_tracks_fingerprint ON tracks(content_fingerprint)`,
			`CREATE TABLE IF NOT EXISTS playlists (
				row_id INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				description TEXT,
				date_created INTEGER NOT NULL,
				date_modified INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS playlist_tracks (
				playlist_row_id INTEGER NOT NULL REFERENCES playlists(row_id) ON DELETE CASCADE,
				track_row_id INTEGER NOT NULL REFERENCES tracks(row_id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				date_added INTEGER NOT NULL,
				PRIMARY KEY (playlist_row_id, track_row_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_playlist_tracks_position ON playlist_tracks(playlist_row_id, position)`,
			`CREATE TABLE IF NOT EXISTS beatgrids (
				track_row_id INTEGER PRIMARY KEY REFERENCES tracks(row_id) ON DELETE CASCADE,
				bpm REAL NOT NULL,
				offset_secs REAL NOT NULL,
				confidence REAL NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS cue_points (
				row_id INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				track_row_id INTEGER NOT NULL REFERENCES tracks(row_id) ON DELETE CASCADE,
				position_secs REAL NOT NULL,
				type TEXT NOT NULL,
				label TEXT,
				color TEXT,
				hotkey TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_cue_points_track ON cue_points(track_row_id)`,
			`CREATE TABLE IF NOT EXISTS loops (
				row_id INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				track_row_id INTEGER NOT NULL REFERENCES tracks(row_id) ON DELETE CASCADE,
				start_secs REAL NOT NULL,
				end_secs REAL NOT NULL,
				label TEXT,
				is_active INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_loops_track ON loops(track_row_id)`,
			`CREATE TABLE IF NOT EXISTS waveform_peaks (
				track_row_id INTEGER PRIMARY KEY REFERENCES tracks(row_id) ON DELETE CASCADE,
				peaks BLOB NOT NULL,
				sample_rate_summary INTEGER NOT NULL,
				version INTEGER NOT NULL,
				content_fingerprint TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS jobs (
				row_id INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				kind TEXT NOT NULL,
				state TEXT NOT NULL,
				progress REAL NOT NULL DEFAULT 0,
				cancel_requested INTEGER NOT NULL DEFAULT 0,
				detail TEXT,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
		},
	},
}

// migrate applies every migration newer than the stored schema version,
// in one transaction, then stamps the new version. It refuses to run if
// the stored version is newer than currentSchemaVersion.
func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreMigrate, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	)`); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreMigrate, err)
	}

	var stored int
	err = tx.QueryRow(`SELECT version FROM schema_meta WHERE id = 1`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		stored = 0
	case err != nil:
		return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreMigrate, err)
	}

	if stored > currentSchemaVersion {
		return engineerr.New(engineerr.KindSchemaTooNew, engineerr.OpStoreMigrate)
	}

	for _, m := range migrations {
		if m.version <= stored {
			continue
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return engineerr.Wrap(engineerr.KindCorrupt, engineerr.OpStoreMigrate,
					fmt.Errorf("migration %d: %w", m.version, err))
			}
		}
	}

	if _, err := tx.Exec(`INSERT INTO schema_meta (id, version) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version`, currentSchemaVersion); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpStoreMigrate, err)
	}

	return tx.Commit()
}
