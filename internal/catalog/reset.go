package catalog

import (
	"context"
	"database/sql"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// ResetResult reports how many rows an ResetAll call removed, per the
// reset_library command's `{tracks_deleted, playlists_deleted,
// waveforms_deleted}` reply shape (§6.1).
type ResetResult struct {
	TracksDeleted    int64
	PlaylistsDeleted int64
	WaveformsDeleted int64
}

// ResetAll deletes every track and playlist, and (via ON DELETE
// CASCADE) every beatgrid, cue point, loop, waveform peak, and
// playlist membership row. It is the backing implementation for the
// reset_library command, per §6.1 — destructive and irreversible.
func (c *Catalog) ResetAll(ctx context.Context) (ResetResult, error) {
	var res ResetResult
	err := c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRow(`SELECT COUNT(*) FROM waveform_peaks`).Scan(&res.WaveformsDeleted); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpReset, err)
		}

		playlistsResult, err := tx.Exec(`DELETE FROM playlists`)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpReset, err)
		}
		res.PlaylistsDeleted, err = playlistsResult.RowsAffected()
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpReset, err)
		}

		tracksResult, err := tx.Exec(`DELETE FROM tracks`)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpReset, err)
		}
		res.TracksDeleted, err = tracksResult.RowsAffected()
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpReset, err)
		}
		return nil
	})
	return res, err
}
