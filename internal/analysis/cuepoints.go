package analysis

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// CuePointType enumerates the fixed cue-point kinds from §3.
type CuePointType string

const (
	CueGeneric CuePointType = "cue"
	CueIntro   CuePointType = "intro"
	CueOutro   CuePointType = "outro"
	CueDrop    CuePointType = "drop"
	CueVocal   CuePointType = "vocal"
	CueBreak   CuePointType = "break"
	CueCustom  CuePointType = "custom"
)

// CuePoint is a named instant within a track.
type CuePoint struct {
	ID           string
	TrackID      string
	PositionSecs float64
	Type         CuePointType
	Label        *string
	Color        *string
	Hotkey       *string
}

var errPositionOutOfRange = errors.New("analysis: position outside track duration")

// CreateCuePoint validates position against the track's duration and
// inserts a new cue point.
func (a *Analysis) CreateCuePoint(ctx context.Context, cp CuePoint) (CuePoint, error) {
	cp.ID = uuid.NewString()
	err := a.store.WithWrite(ctx, func(tx *sql.Tx) error {
		rowID, err := trackRowIDTx(tx, cp.TrackID, engineerr.OpCuePoint)
		if err != nil {
			return err
		}
		dur, err := trackDurationTx(tx, rowID)
		if err != nil {
			return err
		}
		if cp.PositionSecs < 0 || cp.PositionSecs > dur {
			return engineerr.Invalid(engineerr.OpCuePoint, "position_secs", errPositionOutOfRange)
		}
		_, err = tx.Exec(`
			INSERT INTO cue_points (id, track_row_id, position_secs, type, label, color, hotkey)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, cp.ID, rowID, cp.PositionSecs, string(cp.Type), cp.Label, cp.Color, cp.Hotkey)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpCuePoint, err)
		}
		return nil
	})
	if err != nil {
		return CuePoint{}, err
	}
	return cp, nil
}

// GetCuePoints returns every cue point for trackID, ordered by position.
func (a *Analysis) GetCuePoints(ctx context.Context, trackID string) ([]CuePoint, error) {
	var out []CuePoint
	err := a.store.WithRead(ctx, func(db *sql.DB) error {
		rows, err := db.Query(`
			SELECT cp.id, t.id, cp.position_secs, cp.type, cp.label, cp.color, cp.hotkey
			FROM cue_points cp JOIN tracks t ON t.row_id = cp.track_row_id
			WHERE t.id = ? ORDER BY cp.position_secs
		`, trackID)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpCuePoint, err)
		}
		defer rows.Close()
		for rows.Next() {
			cp, err := scanCuePoint(rows)
			if err != nil {
				return err
			}
			out = append(out, cp)
		}
		return rows.Err()
	})
	return out, err
}

// UpdateCuePoint overwrites an existing cue point's mutable fields.
func (a *Analysis) UpdateCuePoint(ctx context.Context, cp CuePoint) error {
	return a.store.WithWrite(ctx, func(tx *sql.Tx) error {
		var trackRowID int64
		if err := tx.QueryRow(`SELECT track_row_id FROM cue_points WHERE id = ?`, cp.ID).Scan(&trackRowID); err != nil {
			if err == sql.ErrNoRows {
				return engineerr.New(engineerr.KindNotFound, engineerr.OpCuePoint)
			}
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpCuePoint, err)
		}
		dur, err := trackDurationTx(tx, trackRowID)
		if err != nil {
			return err
		}
		if cp.PositionSecs < 0 || cp.PositionSecs > dur {
			return engineerr.Invalid(engineerr.OpCuePoint, "position_secs", errPositionOutOfRange)
		}
		_, err = tx.Exec(`
			UPDATE cue_points SET position_secs = ?, type = ?, label = ?, color = ?, hotkey = ?
			WHERE id = ?
		`, cp.PositionSecs, string(cp.Type), cp.Label, cp.Color, cp.Hotkey, cp.ID)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpCuePoint, err)
		}
		return nil
	})
}

// DeleteCuePoint removes one cue point. Idempotent.
func (a *Analysis) DeleteCuePoint(ctx context.Context, id string) error {
	return a.store.WithWrite(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM cue_points WHERE id = ?`, id); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpCuePoint, err)
		}
		return nil
	})
}

func scanCuePoint(row rowScanner) (CuePoint, error) {
	var cp CuePoint
	var typ string
	var label, color, hotkey sql.NullString
	if err := row.Scan(&cp.ID, &cp.TrackID, &cp.PositionSecs, &typ, &label, &color, &hotkey); err != nil {
		return CuePoint{}, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpCuePoint, err)
	}
	cp.Type = CuePointType(typ)
	if label.Valid {
		cp.Label = &label.String
	}
	if color.Valid {
		cp.Color = &color.String
	}
	if hotkey.Valid {
		cp.Hotkey = &hotkey.String
	}
	return cp, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
