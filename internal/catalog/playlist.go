package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
	"github.com/jvegaf/symphony-engine/internal/store"
)

// Playlist is a named, ordered collection of tracks.
type Playlist struct {
	ID           string
	Name         string
	Description  *string
	DateCreated  int64
	DateModified int64
}

// PlaylistTrack is one membership row, joined with its track for display.
type PlaylistTrack struct {
	Track
	Position int
}

// CreatePlaylist inserts a new, empty playlist. Uniqueness of name is not
// required — the UI may create duplicates, per §4.3.
func (c *Catalog) CreatePlaylist(ctx context.Context, name string, description *string) (Playlist, error) {
	if name == "" {
		return Playlist{}, engineerr.Invalid(engineerr.OpPlaylistCreate, "name", errEmptyName)
	}
	p := Playlist{ID: uuid.NewString(), Name: name, Description: description}
	now := time.Now().Unix()
	p.DateCreated = now
	p.DateModified = now

	err := c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO playlists (id, name, description, date_created, date_modified)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.Description, p.DateCreated, p.DateModified)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistCreate, err)
		}
		return nil
	})
	if err != nil {
		return Playlist{}, err
	}
	return p, nil
}

// CreatePlaylistWithTracks creates a playlist and appends trackIDs in one
// transaction; on any failure nothing persists, per §4.3.
func (c *Catalog) CreatePlaylistWithTracks(ctx context.Context, name string, description *string, trackIDs []string) (Playlist, error) {
	if name == "" {
		return Playlist{}, engineerr.Invalid(engineerr.OpPlaylistCreate, "name", errEmptyName)
	}
	p := Playlist{ID: uuid.NewString(), Name: name, Description: description}
	now := time.Now().Unix()
	p.DateCreated = now
	p.DateModified = now

	err := c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		var playlistRowID int64
		err := tx.QueryRow(`
			INSERT INTO playlists (id, name, description, date_created, date_modified)
			VALUES (?, ?, ?, ?, ?) RETURNING row_id
		`, p.ID, p.Name, p.Description, p.DateCreated, p.DateModified).Scan(&playlistRowID)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistCreate, err)
		}
		_, err = appendTracksTx(tx, playlistRowID, trackIDs, now)
		return err
	})
	if err != nil {
		return Playlist{}, err
	}
	return p, nil
}

// RenamePlaylist updates name/description and bumps DateModified.
func (c *Catalog) RenamePlaylist(ctx context.Context, id, name string, description *string) error {
	if name == "" {
		return engineerr.Invalid(engineerr.OpPlaylistRename, "name", errEmptyName)
	}
	return c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE playlists SET name = ?, description = ?, date_modified = ?
			WHERE id = ?
		`, name, description, time.Now().Unix(), id)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistRename, err)
		}
		return requireAffected(res, engineerr.OpPlaylistRename)
	})
}

// DeletePlaylist removes a playlist and, via ON DELETE CASCADE, its
// membership rows. It never touches the tracks themselves. Idempotent.
func (c *Catalog) DeletePlaylist(ctx context.Context, id string) error {
	return c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM playlists WHERE id = ?`, id)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistDelete, err)
		}
		return nil
	})
}

// ListPlaylists returns every playlist, ordered by name.
func (c *Catalog) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	var out []Playlist
	err := c.store.WithRead(ctx, func(db *sql.DB) error {
		rows, err := db.Query(`SELECT id, name, description, date_created, date_modified
			FROM playlists ORDER BY name COLLATE NOCASE`)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistCreate, err)
		}
		defer rows.Close()
		for rows.Next() {
			var p Playlist
			var desc sql.NullString
			if err := rows.Scan(&p.ID, &p.Name, &desc, &p.DateCreated, &p.DateModified); err != nil {
				return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistCreate, err)
			}
			if desc.Valid {
				v := desc.String
				p.Description = &v
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// GetPlaylistTracks returns a playlist's members in position order.
func (c *Catalog) GetPlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error) {
	var out []PlaylistTrack
	err := c.store.WithRead(ctx, func(db *sql.DB) error {
		rows, err := db.Query(`
			SELECT t.id, t.path, t.title, t.artist, t.album, t.genre, t.year, t.duration_secs,
				t.bitrate, t.bpm, t.key, t.rating, t.beatport_id, t.tags_fixed,
				t.content_fingerprint, t.date_added, t.date_modified, pt.position
			FROM playlist_tracks pt
			JOIN tracks t ON t.row_id = pt.track_row_id
			JOIN playlists p ON p.row_id = pt.playlist_row_id
			WHERE p.id = ?
			ORDER BY pt.position
		`, playlistID)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpTrackList, err)
		}
		defer rows.Close()
		for rows.Next() {
			pt, err := scanPlaylistTrack(rows)
			if err != nil {
				return err
			}
			out = append(out, pt)
		}
		return rows.Err()
	})
	return out, err
}

// AddTracks appends trackIDs not already members, de-duplicated
// preserving first occurrence, at max(position)+1, in one transaction.
// Returns the count actually inserted.
func (c *Catalog) AddTracks(ctx context.Context, playlistID string, trackIDs []string) (int, error) {
	var inserted int
	err := c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		playlistRowID, err := playlistRowIDTx(tx, playlistID, engineerr.OpPlaylistAdd)
		if err != nil {
			return err
		}
		n, err := appendTracksTx(tx, playlistRowID, trackIDs, time.Now().Unix())
		if err != nil {
			return err
		}
		inserted = n
		return touchPlaylistTx(tx, playlistRowID, engineerr.OpPlaylistAdd)
	})
	return inserted, err
}

// RemoveTrack removes one membership row and compacts positions so the
// remaining sequence stays dense.
func (c *Catalog) RemoveTrack(ctx context.Context, playlistID, trackID string) error {
	return c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		playlistRowID, err := playlistRowIDTx(tx, playlistID, engineerr.OpPlaylistRemove)
		if err != nil {
			return err
		}
		trackRowID, err := trackRowIDTx(tx, trackID, engineerr.OpPlaylistRemove)
		if err != nil {
			return err
		}

		var removedPos sql.NullInt64
		err = tx.QueryRow(`SELECT position FROM playlist_tracks
			WHERE playlist_row_id = ? AND track_row_id = ?`, playlistRowID, trackRowID).Scan(&removedPos)
		if err == sql.ErrNoRows {
			return nil // idempotent per §4.3
		}
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistRemove, err)
		}

		if _, err := tx.Exec(`DELETE FROM playlist_tracks
			WHERE playlist_row_id = ? AND track_row_id = ?`, playlistRowID, trackRowID); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistRemove, err)
		}
		if _, err := tx.Exec(`UPDATE playlist_tracks SET position = position - 1
			WHERE playlist_row_id = ? AND position > ?`, playlistRowID, removedPos.Int64); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistRemove, err)
		}
		return touchPlaylistTx(tx, playlistRowID, engineerr.OpPlaylistRemove)
	})
}

// Reorder rewrites positions 1..N from orderedTrackIDs, which must be
// exactly the current membership as a set; otherwise Conflict and the
// playlist is left unchanged.
func (c *Catalog) Reorder(ctx context.Context, playlistID string, orderedTrackIDs []string) error {
	return c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		playlistRowID, err := playlistRowIDTx(tx, playlistID, engineerr.OpPlaylistReorder)
		if err != nil {
			return err
		}

		rows, err := tx.Query(`SELECT t.id FROM playlist_tracks pt
			JOIN tracks t ON t.row_id = pt.track_row_id
			WHERE pt.playlist_row_id = ?`, playlistRowID)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistReorder, err)
		}
		current := make(map[string]bool)
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistReorder, err)
			}
			current[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistReorder, err)
		}

		if len(orderedTrackIDs) != len(current) {
			return engineerr.New(engineerr.KindConflict, engineerr.OpPlaylistReorder)
		}
		seen := make(map[string]bool, len(orderedTrackIDs))
		for _, id := range orderedTrackIDs {
			if !current[id] || seen[id] {
				return engineerr.New(engineerr.KindConflict, engineerr.OpPlaylistReorder)
			}
			seen[id] = true
		}

		for i, trackID := range orderedTrackIDs {
			trackRowID, err := trackRowIDTx(tx, trackID, engineerr.OpPlaylistReorder)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(`UPDATE playlist_tracks SET position = ?
				WHERE playlist_row_id = ? AND track_row_id = ?`, i+1, playlistRowID, trackRowID); err != nil {
				return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistReorder, err)
			}
		}
		return touchPlaylistTx(tx, playlistRowID, engineerr.OpPlaylistReorder)
	})
}

// appendTracksTx inserts trackIDs not already members at
// max(position)+1, de-duplicating the input while preserving first
// occurrence. It must run inside an existing transaction.
func appendTracksTx(tx *sql.Tx, playlistRowID int64, trackIDs []string, now int64) (int, error) {
	var maxPos sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(position) FROM playlist_tracks WHERE playlist_row_id = ?`,
		playlistRowID).Scan(&maxPos); err != nil {
		return 0, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistAdd, err)
	}
	next := maxPos.Int64 + 1

	seen := make(map[string]bool, len(trackIDs))
	inserted := 0
	for _, trackID := range trackIDs {
		if seen[trackID] {
			continue
		}
		seen[trackID] = true

		trackRowID, err := trackRowIDTx(tx, trackID, engineerr.OpPlaylistAdd)
		if err != nil {
			return 0, err
		}

		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM playlist_tracks
			WHERE playlist_row_id = ? AND track_row_id = ?`, playlistRowID, trackRowID).Scan(&exists); err != nil {
			return 0, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistAdd, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := tx.Exec(`INSERT INTO playlist_tracks
			(playlist_row_id, track_row_id, position, date_added) VALUES (?, ?, ?, ?)`,
			playlistRowID, trackRowID, next, now); err != nil {
			return 0, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpPlaylistAdd, err)
		}
		next++
		inserted++
	}
	return inserted, nil
}

func playlistRowIDTx(tx *sql.Tx, id string, op engineerr.Op) (int64, error) {
	var rowID int64
	err := tx.QueryRow(`SELECT row_id FROM playlists WHERE id = ?`, id).Scan(&rowID)
	if err == sql.ErrNoRows {
		return 0, engineerr.New(engineerr.KindNotFound, op)
	}
	if err != nil {
		return 0, engineerr.Wrap(engineerr.KindStoreUnavailable, op, err)
	}
	return rowID, nil
}

func trackRowIDTx(tx *sql.Tx, id string, op engineerr.Op) (int64, error) {
	var rowID int64
	err := tx.QueryRow(`SELECT row_id FROM tracks WHERE id = ?`, id).Scan(&rowID)
	if err == sql.ErrNoRows {
		return 0, engineerr.New(engineerr.KindNotFound, op)
	}
	if err != nil {
		return 0, engineerr.Wrap(engineerr.KindStoreUnavailable, op, err)
	}
	return rowID, nil
}

func touchPlaylistTx(tx *sql.Tx, playlistRowID int64, op engineerr.Op) error {
	if _, err := tx.Exec(`UPDATE playlists SET date_modified = ? WHERE row_id = ?`,
		time.Now().Unix(), playlistRowID); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, op, err)
	}
	return nil
}

func requireAffected(res sql.Result, op engineerr.Op) error {
	n, err := res.RowsAffected()
	if err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, op, err)
	}
	if n == 0 {
		return engineerr.New(engineerr.KindNotFound, op)
	}
	return nil
}

func scanPlaylistTrack(row rowScanner) (PlaylistTrack, error) {
	var pt PlaylistTrack
	var album, genre, key, beatportID sql.NullString
	var year, bitrate sql.NullInt64
	var bpm sql.NullFloat64
	var tagsFixed int

	err := row.Scan(&pt.ID, &pt.Path, &pt.Title, &pt.Artist, &album, &genre, &year, &pt.DurationSecs,
		&bitrate, &bpm, &key, &pt.Rating, &beatportID, &tagsFixed, &pt.ContentFingerprint,
		&pt.DateAdded, &pt.DateModified, &pt.Position)
	if err != nil {
		return PlaylistTrack{}, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpTrackList, err)
	}

	pt.Album = store.NullStringToPtr(album)
	pt.Genre = store.NullStringToPtr(genre)
	pt.Key = store.NullStringToPtr(key)
	pt.BeatportID = store.NullStringToPtr(beatportID)
	pt.Year = store.NullInt64ToPtr(year)
	pt.Bitrate = store.NullInt64ToPtr(bitrate)
	pt.BPM = store.NullFloat64ToPtr(bpm)
	pt.TagsFixed = tagsFixed != 0
	return pt, nil
}
