package analysis

import (
	"context"
	"database/sql"

	"github.com/jvegaf/symphony-engine/internal/decode"
	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// Beatgrid is the 1:1 analysis artifact aligning a regular tick grid
// with a track's beats.
type Beatgrid struct {
	TrackID    string
	BPM        float64
	OffsetSecs float64
	Confidence float64
}

// AnalyzeBeatgrid decodes path, runs onset detection, and upserts the
// resulting beatgrid for trackID. progress, if non-nil, receives
// monotonically non-decreasing values in [0,1] as decode proceeds; the
// caller (Job Runner) is responsible for publishing these onto the
// event bus. Cancelling ctx aborts mid-decode and persists nothing, per
// §5 ("no partial analysis artifact... is persisted").
func (a *Analysis) AnalyzeBeatgrid(ctx context.Context, trackID, path string, progress func(float64)) (Beatgrid, error) {
	src, err := decode.Open(path)
	if err != nil {
		return Beatgrid{}, err
	}
	defer src.Close()

	result, err := detectOnsets(ctx, src, progress)
	if err != nil {
		return Beatgrid{}, err
	}

	bpm, offset, confidence := estimateBeatgrid(result, a.minBPM, a.maxBPM)
	if bpm <= 0 {
		return Beatgrid{}, engineerr.New(engineerr.KindDecode, engineerr.OpBeatgrid)
	}
	bg := Beatgrid{TrackID: trackID, BPM: bpm, OffsetSecs: offset, Confidence: confidence}

	if err := a.upsertBeatgrid(ctx, bg); err != nil {
		return Beatgrid{}, err
	}
	if progress != nil {
		progress(1.0)
	}
	return bg, nil
}

func (a *Analysis) upsertBeatgrid(ctx context.Context, bg Beatgrid) error {
	return a.store.WithWrite(ctx, func(tx *sql.Tx) error {
		rowID, err := trackRowIDTx(tx, bg.TrackID, engineerr.OpBeatgrid)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO beatgrids (track_row_id, bpm, offset_secs, confidence)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(track_row_id) DO UPDATE SET
				bpm = excluded.bpm, offset_secs = excluded.offset_secs, confidence = excluded.confidence
		`, rowID, bg.BPM, bg.OffsetSecs, bg.Confidence)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpBeatgrid, err)
		}
		return nil
	})
}

// GetBeatgrid returns the stored beatgrid for trackID, or NotFound if
// none has been computed.
func (a *Analysis) GetBeatgrid(ctx context.Context, trackID string) (Beatgrid, error) {
	var bg Beatgrid
	err := a.store.WithRead(ctx, func(db *sql.DB) error {
		row := db.QueryRow(`
			SELECT t.id, b.bpm, b.offset_secs, b.confidence
			FROM beatgrids b JOIN tracks t ON t.row_id = b.track_row_id
			WHERE t.id = ?
		`, trackID)
		err := row.Scan(&bg.TrackID, &bg.BPM, &bg.OffsetSecs, &bg.Confidence)
		if err == sql.ErrNoRows {
			return engineerr.New(engineerr.KindNotFound, engineerr.OpBeatgrid)
		}
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpBeatgrid, err)
		}
		return nil
	})
	return bg, err
}

// UpdateBeatgridOffset adjusts a previously computed beatgrid's offset,
// leaving bpm and confidence untouched, for the common DJ workflow of
// nudging the grid onto the true downbeat.
func (a *Analysis) UpdateBeatgridOffset(ctx context.Context, trackID string, offsetSecs float64) error {
	if offsetSecs < 0 {
		return engineerr.Invalid(engineerr.OpBeatgrid, "offset_secs", errNegativeOffset)
	}
	return a.store.WithWrite(ctx, func(tx *sql.Tx) error {
		rowID, err := trackRowIDTx(tx, trackID, engineerr.OpBeatgrid)
		if err != nil {
			return err
		}
		res, err := tx.Exec(`UPDATE beatgrids SET offset_secs = ? WHERE track_row_id = ?`, offsetSecs, rowID)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpBeatgrid, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpBeatgrid, err)
		}
		if n == 0 {
			return engineerr.New(engineerr.KindNotFound, engineerr.OpBeatgrid)
		}
		return nil
	})
}

// DeleteBeatgrid removes the beatgrid for trackID. Idempotent.
func (a *Analysis) DeleteBeatgrid(ctx context.Context, trackID string) error {
	return a.store.WithWrite(ctx, func(tx *sql.Tx) error {
		rowID, err := trackRowIDTx(tx, trackID, engineerr.OpBeatgrid)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM beatgrids WHERE track_row_id = ?`, rowID); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpBeatgrid, err)
		}
		return nil
	})
}
