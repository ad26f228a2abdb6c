package analysis

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/jvegaf/symphony-engine/internal/decode"
	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// SeedCues is the opt-in automatic cue detector from §4.4/§9: it
// creates at most one "intro" cue at the first strong onset and one
// "outro" cue at the last, and never overwrites a user-edited entry —
// defined, per §9's Open Question resolution, as any existing intro or
// outro cue point carrying a non-null label or color.
func (a *Analysis) SeedCues(ctx context.Context, trackID, path string) error {
	src, err := decode.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	result, err := detectOnsets(ctx, src, nil)
	if err != nil {
		return err
	}
	if len(result.onsetSecs) == 0 {
		return nil
	}
	introAt := result.onsetSecs[0]
	outroAt := result.onsetSecs[len(result.onsetSecs)-1]

	return a.store.WithWrite(ctx, func(tx *sql.Tx) error {
		rowID, err := trackRowIDTx(tx, trackID, engineerr.OpCuePoint)
		if err != nil {
			return err
		}
		if err := seedOneCueTx(tx, rowID, CueIntro, introAt); err != nil {
			return err
		}
		return seedOneCueTx(tx, rowID, CueOutro, outroAt)
	})
}

func seedOneCueTx(tx *sql.Tx, trackRowID int64, typ CuePointType, positionSecs float64) error {
	var id string
	var label, color sql.NullString
	err := tx.QueryRow(`SELECT id, label, color FROM cue_points WHERE track_row_id = ? AND type = ?`,
		trackRowID, string(typ)).Scan(&id, &label, &color)
	switch {
	case err == sql.ErrNoRows:
		_, err := tx.Exec(`
			INSERT INTO cue_points (id, track_row_id, position_secs, type) VALUES (?, ?, ?, ?)
		`, uuid.NewString(), trackRowID, positionSecs, string(typ))
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpCuePoint, err)
		}
		return nil
	case err != nil:
		return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpCuePoint, err)
	case label.Valid || color.Valid:
		return nil // user-edited; never overwritten
	default:
		if _, err := tx.Exec(`UPDATE cue_points SET position_secs = ? WHERE id = ?`, positionSecs, id); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpCuePoint, err)
		}
		return nil
	}
}
