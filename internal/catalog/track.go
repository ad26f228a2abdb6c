package catalog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
	"github.com/jvegaf/symphony-engine/internal/store"
)

// Track is one catalog entry. Pointer fields are optional per the data
// model; a nil pointer round-trips to SQL NULL.
type Track struct {
	ID                 string
	Path               string
	Title              string
	Artist             string
	Album              *string
	Genre              *string
	Year               *int64
	DurationSecs       float64
	Bitrate            *int64
	BPM                *float64
	Key                *string
	Rating              int
	BeatportID          *string
	TagsFixed           bool
	ContentFingerprint  string
	DateAdded           int64
	DateModified        int64
}

// TrackPatch is a partial update for UpdateMetadata. Nil fields are left
// untouched; a non-nil pointer-to-pointer field clears the column when
// it points at a nil value.
type TrackPatch struct {
	Title              *string
	Artist             *string
	Album              **string
	Genre              **string
	Year               **int64
	Bitrate            **int64
	BPM                **float64
	Key                **string
	Rating             *int
	BeatportID         **string
	TagsFixed          *bool
	ContentFingerprint *string
}

// TrackFilter narrows ListTracks. Zero values are treated as "no
// constraint" for that field.
type TrackFilter struct {
	Query     string
	Genre     string
	MinBPM    float64
	MaxBPM    float64
	Key       string
	MinRating int
	MinYear   int
	MaxYear   int
}

// SortKey is a column ListTracks may order by, matching the UI's column
// set.
type SortKey string

const (
	SortTitle    SortKey = "title"
	SortArtist   SortKey = "artist"
	SortAlbum    SortKey = "album"
	SortBPM      SortKey = "bpm"
	SortRating   SortKey = "rating"
	SortYear     SortKey = "year"
	SortDuration SortKey = "duration_secs"
	SortAdded    SortKey = "date_added"
)

var sortColumns = map[SortKey]string{
	SortTitle:    "title",
	SortArtist:   "artist",
	SortAlbum:    "album",
	SortBPM:      "bpm",
	SortRating:   "rating",
	SortYear:     "year",
	SortDuration: "duration_secs",
	SortAdded:    "date_added",
}

// InsertTrack persists a new track, rejecting a path collision with
// Conflict. ID, DateAdded, and DateModified are assigned here; any
// values the caller set are overwritten.
func (c *Catalog) InsertTrack(ctx context.Context, t Track) (Track, error) {
	t.ID = uuid.NewString()
	now := time.Now().Unix()
	t.DateAdded = now
	t.DateModified = now

	err := c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM tracks WHERE path = ?`, t.Path).Scan(&exists); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpTrackInsert, err)
		}
		if exists > 0 {
			return engineerr.New(engineerr.KindConflict, engineerr.OpTrackInsert)
		}
		if t.Rating < 0 || t.Rating > 5 {
			return engineerr.Invalid(engineerr.OpTrackInsert, "rating", errRatingOutOfRange)
		}
		if t.DurationSecs < 0 {
			return engineerr.Invalid(engineerr.OpTrackInsert, "duration_secs", errNegativeDuration)
		}

		_, err := tx.Exec(`
			INSERT INTO tracks (id, path, title, artist, album, genre, year, duration_secs,
				bitrate, bpm, key, rating, beatport_id, tags_fixed, content_fingerprint,
				date_added, date_modified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.Path, t.Title, t.Artist, t.Album, t.Genre, t.Year, t.DurationSecs,
			t.Bitrate, t.BPM, t.Key, t.Rating, t.BeatportID, t.TagsFixed, t.ContentFingerprint,
			t.DateAdded, t.DateModified)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpTrackInsert, err)
		}
		return nil
	})
	if err != nil {
		return Track{}, err
	}
	return t, nil
}

// UpdateMetadata applies a partial patch, preserving unspecified fields
// and bumping DateModified.
func (c *Catalog) UpdateMetadata(ctx context.Context, id string, patch TrackPatch) error {
	return c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		cur, err := getTrackTx(tx, id)
		if err != nil {
			return err
		}

		if patch.Title != nil {
			cur.Title = *patch.Title
		}
		if patch.Artist != nil {
			cur.Artist = *patch.Artist
		}
		if patch.Album != nil {
			cur.Album = *patch.Album
		}
		if patch.Genre != nil {
			cur.Genre = *patch.Genre
		}
		if patch.Year != nil {
			cur.Year = *patch.Year
		}
		if patch.Bitrate != nil {
			cur.Bitrate = *patch.Bitrate
		}
		if patch.BPM != nil {
			cur.BPM = *patch.BPM
		}
		if patch.Key != nil {
			cur.Key = *patch.Key
		}
		if patch.Rating != nil {
			if *patch.Rating < 0 || *patch.Rating > 5 {
				return engineerr.Invalid(engineerr.OpTrackUpdate, "rating", errRatingOutOfRange)
			}
			cur.Rating = *patch.Rating
		}
		if patch.BeatportID != nil {
			cur.BeatportID = *patch.BeatportID
		}
		if patch.TagsFixed != nil {
			cur.TagsFixed = *patch.TagsFixed
		}
		if patch.ContentFingerprint != nil {
			cur.ContentFingerprint = *patch.ContentFingerprint
		}
		cur.DateModified = time.Now().Unix()

		_, err = tx.Exec(`
			UPDATE tracks SET title = ?, artist = ?, album = ?, genre = ?, year = ?,
				bitrate = ?, bpm = ?, key = ?, rating = ?, beatport_id = ?,
				tags_fixed = ?, content_fingerprint = ?, date_modified = ?
			WHERE id = ?
		`, cur.Title, cur.Artist, cur.Album, cur.Genre, cur.Year, cur.Bitrate, cur.BPM,
			cur.Key, cur.Rating, cur.BeatportID, cur.TagsFixed, cur.ContentFingerprint,
			cur.DateModified, id)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpTrackUpdate, err)
		}
		return nil
	})
}

// DeleteTrack removes a track and, via ON DELETE CASCADE, its beatgrid,
// cue points, loops, waveform peaks, and playlist memberships. It is
// idempotent: deleting an absent ID is not an error.
func (c *Catalog) DeleteTrack(ctx context.Context, id string) error {
	return c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM tracks WHERE id = ?`, id); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpTrackDelete, err)
		}
		return nil
	})
}

// GetTrack returns a single track by id.
func (c *Catalog) GetTrack(ctx context.Context, id string) (Track, error) {
	var t Track
	err := c.store.WithRead(ctx, func(db *sql.DB) error {
		row := db.QueryRow(trackSelectCols+` FROM tracks WHERE id = ?`, id)
		var scanErr error
		t, scanErr = scanTrack(row)
		return scanErr
	})
	return t, err
}

// ListTracks returns tracks matching filter, ordered by sort (ascending)
// with a stable (title, artist, path) tie-break.
func (c *Catalog) ListTracks(ctx context.Context, filter TrackFilter, sort SortKey) ([]Track, error) {
	col, ok := sortColumns[sort]
	if !ok {
		col = sortColumns[SortTitle]
	}

	var clauses []string
	var args []any

	if filter.Query != "" {
		clauses = append(clauses, `(title LIKE ? ESCAPE '\' OR artist LIKE ? ESCAPE '\' OR album LIKE ? ESCAPE '\')`)
		q := "%" + escapeLike(filter.Query) + "%"
		args = append(args, q, q, q)
	}
	if filter.Genre != "" {
		clauses = append(clauses, `genre = ?`)
		args = append(args, filter.Genre)
	}
	if filter.MinBPM > 0 {
		clauses = append(clauses, `bpm >= ?`)
		args = append(args, filter.MinBPM)
	}
	if filter.MaxBPM > 0 {
		clauses = append(clauses, `bpm <= ?`)
		args = append(args, filter.MaxBPM)
	}
	if filter.Key != "" {
		clauses = append(clauses, `key = ?`)
		args = append(args, filter.Key)
	}
	if filter.MinRating > 0 {
		clauses = append(clauses, `rating >= ?`)
		args = append(args, filter.MinRating)
	}
	if filter.MinYear > 0 {
		clauses = append(clauses, `year >= ?`)
		args = append(args, filter.MinYear)
	}
	if filter.MaxYear > 0 {
		clauses = append(clauses, `year <= ?`)
		args = append(args, filter.MaxYear)
	}

	query := trackSelectCols + ` FROM tracks`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY ` + col + ` COLLATE NOCASE, title COLLATE NOCASE, artist COLLATE NOCASE, path`

	var tracks []Track
	err := c.store.WithRead(ctx, func(db *sql.DB) error {
		rows, err := db.Query(query, args...)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpTrackList, err)
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTrack(rows)
			if err != nil {
				return err
			}
			tracks = append(tracks, t)
		}
		return rows.Err()
	})
	return tracks, err
}

const trackSelectCols = `SELECT id, path, title, artist, album, genre, year, duration_secs,
	bitrate, bpm, key, rating, beatport_id, tags_fixed, content_fingerprint,
	date_added, date_modified`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (Track, error) {
	var t Track
	var album, genre, key, beatportID sql.NullString
	var year, bitrate sql.NullInt64
	var bpm sql.NullFloat64
	var tagsFixed int

	err := row.Scan(&t.ID, &t.Path, &t.Title, &t.Artist, &album, &genre, &year, &t.DurationSecs,
		&bitrate, &bpm, &key, &t.Rating, &beatportID, &tagsFixed, &t.ContentFingerprint,
		&t.DateAdded, &t.DateModified)
	if err != nil {
		if err == sql.ErrNoRows {
			return Track{}, engineerr.New(engineerr.KindNotFound, engineerr.OpTrackList)
		}
		return Track{}, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpTrackList, err)
	}

	t.Album = store.NullStringToPtr(album)
	t.Genre = store.NullStringToPtr(genre)
	t.Key = store.NullStringToPtr(key)
	t.BeatportID = store.NullStringToPtr(beatportID)
	t.Year = store.NullInt64ToPtr(year)
	t.Bitrate = store.NullInt64ToPtr(bitrate)
	t.BPM = store.NullFloat64ToPtr(bpm)
	t.TagsFixed = tagsFixed != 0
	return t, nil
}

func getTrackTx(tx *sql.Tx, id string) (Track, error) {
	row := tx.QueryRow(trackSelectCols+` FROM tracks WHERE id = ?`, id)
	return scanTrack(row)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
