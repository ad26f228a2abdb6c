package analysis

import (
	"database/sql"
	"errors"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

var errNegativeOffset = errors.New("analysis: offset must be non-negative")

// trackRowIDTx resolves a track's internal row_id within tx, or
// NotFound if the track does not exist.
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

// trackDurationTx returns a track's stored duration, used to validate
// cue/loop positions against §3's invariants.
func trackDurationTx(tx *sql.Tx, rowID int64) (float64, error) {
	var d float64
	if err := tx.QueryRow(`SELECT duration_secs FROM tracks WHERE row_id = ?`, rowID).Scan(&d); err != nil {
		return 0, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpCuePoint, err)
	}
	return d, nil
}
