// Package consolidate implements the reconciliation algorithm between
// the catalog and the filesystem described in §4.7: partition tracks
// into present/moved/orphan, delete orphans, repoint moved paths, add
// newly discovered files, collapse duplicates, and vacuum — each phase
// in its own transaction to bound lock time.
package consolidate

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
	"github.com/jvegaf/symphony-engine/internal/fingerprint"
	"github.com/jvegaf/symphony-engine/internal/scanner"
	"github.com/jvegaf/symphony-engine/internal/store"
)

// Result reports the counts from one consolidation run, per §4.7/§6.1.
type Result struct {
	OrphansRemoved    int
	Moved             int
	NewAdded          int
	DuplicatesRemoved int
	Total             int
}

// Report is called after each phase with its name and a progress
// fraction in [0,1], for the Job Runner to forward onto
// "consolidate:progress".
type Report func(phase string, progress float64)

// Consolidator reconciles Store's track rows against a set of library
// root directories.
type Consolidator struct {
	store *store.Store
}

// New returns a Consolidator backed by st.
func New(st *store.Store) *Consolidator {
	return &Consolidator{store: st}
}

type trackRow struct {
	rowID       int64
	id          string
	path        string
	fingerprint string
	duration    float64
	dateAdded   int64
}

// Run executes all six phases against roots.
func (c *Consolidator) Run(ctx context.Context, roots []string, report Report) (Result, error) {
	if report == nil {
		report = func(string, float64) {}
	}
	var result Result

	tracked, err := c.loadTrackedUnderRoots(ctx, roots)
	if err != nil {
		return Result{}, err
	}
	report("scan", 0.1)

	fsFiles, err := walkRoots(ctx, roots)
	if err != nil {
		return Result{}, err
	}
	report("scan", 0.2)

	present, moved, orphans := partition(tracked, fsFiles)
	report("partition", 0.3)

	if err := c.deleteOrphans(ctx, orphans); err != nil {
		return Result{}, err
	}
	result.OrphansRemoved = len(orphans)
	report("remove-orphans", 0.45)

	if err := c.applyMoves(ctx, moved); err != nil {
		return Result{}, err
	}
	result.Moved = len(moved)
	report("apply-moves", 0.6)

	referenced := make(map[string]bool, len(present)+len(moved))
	for _, t := range present {
		referenced[t.path] = true
	}
	for _, m := range moved {
		referenced[m.newPath] = true
	}
	var newFiles []scanner.ScannedFile
	for p, sf := range fsFiles {
		if !referenced[p] {
			newFiles = append(newFiles, sf)
		}
	}
	added, err := c.insertNew(ctx, newFiles)
	if err != nil {
		return Result{}, err
	}
	result.NewAdded = added
	report("add-new", 0.8)

	dupRemoved, err := c.removeDuplicates(ctx)
	if err != nil {
		return Result{}, err
	}
	result.DuplicatesRemoved = dupRemoved
	report("dedupe", 0.9)

	if err := c.store.Vacuum(ctx); err != nil {
		return Result{}, err
	}
	report("vacuum", 1.0)

	result.Total = result.OrphansRemoved + result.Moved + result.NewAdded + result.DuplicatesRemoved
	return result, nil
}

type movedTrack struct {
	trackRow
	newPath string
}

// loadTrackedUnderRoots returns every track row whose path starts with
// one of roots.
func (c *Consolidator) loadTrackedUnderRoots(ctx context.Context, roots []string) ([]trackRow, error) {
	var out []trackRow
	err := c.store.WithRead(ctx, func(db *sql.DB) error {
		rows, err := db.Query(`SELECT row_id, id, path, content_fingerprint, duration_secs, date_added FROM tracks`)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpConsolidate, err)
		}
		defer rows.Close()
		for rows.Next() {
			var t trackRow
			if err := rows.Scan(&t.rowID, &t.id, &t.path, &t.fingerprint, &t.duration, &t.dateAdded); err != nil {
				return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpConsolidate, err)
			}
			if underAnyRoot(t.path, roots) {
				out = append(out, t)
			}
		}
		return rows.Err()
	})
	return out, err
}

func underAnyRoot(path string, roots []string) bool {
	for _, r := range roots {
		if strings.HasPrefix(path, filepath.Clean(r)+string(filepath.Separator)) || path == filepath.Clean(r) {
			return true
		}
	}
	return false
}

// walkRoots enumerates every audio file under roots, keyed by the path
// the walk reports, keeping the probed tag/duration metadata for use
// by insertNew.
func walkRoots(ctx context.Context, roots []string) (map[string]scanner.ScannedFile, error) {
	found := make(map[string]scanner.ScannedFile)
	for _, root := range roots {
		for sf := range scanner.Scan(ctx, root, scanner.Options{}) {
			if sf.Err != nil {
				continue // per-file scan failures are not fatal to consolidate
			}
			found[sf.Path] = sf
		}
		if ctx.Err() != nil {
			return nil, engineerr.Wrap(engineerr.KindCancelled, engineerr.OpConsolidate, ctx.Err())
		}
	}
	return found, nil
}

// partition splits tracked rows into present (unchanged), moved (found
// elsewhere under the roots by fingerprint), and orphan (gone for
// good), per §4.7 step 1.
func partition(tracked []trackRow, fsFiles map[string]scanner.ScannedFile) (present []trackRow, moved []movedTrack, orphans []trackRow) {
	for _, t := range tracked {
		if _, ok := fsFiles[t.path]; ok {
			// File still exists at its catalogued path: present,
			// regardless of whether its content fingerprint drifted
			// (e.g. re-tagged in place) — only a missing path triggers
			// move/orphan classification, per §4.7 step 1.
			present = append(present, t)
			continue
		}

		if newPath, ok := findByFingerprint(t, fsFiles); ok {
			moved = append(moved, movedTrack{trackRow: t, newPath: newPath})
			continue
		}
		orphans = append(orphans, t)
	}
	return present, moved, orphans
}

func findByFingerprint(t trackRow, fsFiles map[string]scanner.ScannedFile) (string, bool) {
	for p := range fsFiles {
		if p == t.path {
			continue
		}
		if fp, err := fingerprint.Of(p); err == nil && fp == t.fingerprint {
			return p, true
		}
	}
	return "", false
}

func (c *Consolidator) deleteOrphans(ctx context.Context, orphans []trackRow) error {
	if len(orphans) == 0 {
		return nil
	}
	return c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		for _, t := range orphans {
			if _, err := tx.Exec(`DELETE FROM tracks WHERE row_id = ?`, t.rowID); err != nil {
				return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpConsolidate, err)
			}
		}
		return nil
	})
}

func (c *Consolidator) applyMoves(ctx context.Context, moved []movedTrack) error {
	if len(moved) == 0 {
		return nil
	}
	return c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		for _, m := range moved {
			if _, err := tx.Exec(`UPDATE tracks SET path = ?, date_modified = ? WHERE row_id = ?`,
				m.newPath, time.Now().Unix(), m.rowID); err != nil {
				return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpConsolidate, err)
			}
		}
		return nil
	})
}

// insertNew inserts a track row for each file discovered during the
// walk but not already referenced by any existing track, per §4.7 step
// 4. Titles fall back to the file's base name when the probe found no
// tag.
func (c *Consolidator) insertNew(ctx context.Context, newFiles []scanner.ScannedFile) (int, error) {
	if len(newFiles) == 0 {
		return 0, nil
	}
	inserted := 0
	err := c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		for _, sf := range newFiles {
			fp, fpErr := fingerprint.Of(sf.Path)
			if fpErr != nil {
				continue
			}
			title := sf.Title
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(sf.Path), filepath.Ext(sf.Path))
			}
			now := time.Now().Unix()
			res, err := tx.Exec(`
				INSERT INTO tracks (id, path, title, artist, album, genre, year, duration_secs,
					bitrate, content_fingerprint, date_added, date_modified)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(path) DO NOTHING
			`, uuid.NewString(), sf.Path, title, sf.Artist, nullIfEmpty(sf.Album), nullIfEmpty(sf.Genre),
				nullIfZero(sf.Year), sf.DurationSecs, nullIfZero(sf.Bitrate), fp, now, now)
			if err != nil {
				return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpConsolidate, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpConsolidate, err)
			}
			inserted += int(n)
		}
		return nil
	})
	return inserted, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

// removeDuplicates finds rows sharing (content_fingerprint, duration
// within 1s), keeps the one with the oldest date_added, and deletes the
// rest, per §4.7 step 5. Path-based duplicates cannot occur — the
// unique constraint on tracks.path rejects them at insert time.
func (c *Consolidator) removeDuplicates(ctx context.Context) (int, error) {
	removed := 0
	err := c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT row_id, content_fingerprint, duration_secs, date_added FROM tracks
			WHERE content_fingerprint != '' ORDER BY content_fingerprint, duration_secs`)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpConsolidate, err)
		}
		type row struct {
			rowID     int64
			fp        string
			duration  float64
			dateAdded int64
		}
		var all []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.rowID, &r.fp, &r.duration, &r.dateAdded); err != nil {
				rows.Close()
				return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpConsolidate, err)
			}
			all = append(all, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpConsolidate, err)
		}

		used := make([]bool, len(all))
		for i := range all {
			if used[i] {
				continue
			}
			group := []int{i}
			for j := i + 1; j < len(all); j++ {
				if used[j] || all[j].fp != all[i].fp {
					continue
				}
				if math.Abs(all[j].duration-all[i].duration) <= 1.0 {
					group = append(group, j)
					used[j] = true
				}
			}
			if len(group) < 2 {
				continue
			}
			oldest := group[0]
			for _, g := range group[1:] {
				if all[g].dateAdded < all[oldest].dateAdded {
					oldest = g
				}
			}
			for _, g := range group {
				if g == oldest {
					continue
				}
				if _, err := tx.Exec(`DELETE FROM tracks WHERE row_id = ?`, all[g].rowID); err != nil {
					return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpConsolidate, err)
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}
