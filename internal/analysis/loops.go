package analysis

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// Loop is a labeled interval within a track.
type Loop struct {
	ID        string
	TrackID   string
	StartSecs float64
	EndSecs   float64
	Label     *string
	IsActive  bool
}

var errLoopRange = errors.New("analysis: loop requires 0 <= start < end <= duration")

// CreateLoop validates 0 <= start < end <= duration and inserts a loop.
func (a *Analysis) CreateLoop(ctx context.Context, l Loop) (Loop, error) {
	l.ID = uuid.NewString()
	err := a.store.WithWrite(ctx, func(tx *sql.Tx) error {
		rowID, err := trackRowIDTx(tx, l.TrackID, engineerr.OpLoop)
		if err != nil {
			return err
		}
		dur, err := trackDurationTx(tx, rowID)
		if err != nil {
			return err
		}
		if err := validateLoopRange(l, dur); err != nil {
			return err
		}
		isActive := 0
		if l.IsActive {
			isActive = 1
		}
		_, err = tx.Exec(`
			INSERT INTO loops (id, track_row_id, start_secs, end_secs, label, is_active)
			VALUES (?, ?, ?, ?, ?, ?)
		`, l.ID, rowID, l.StartSecs, l.EndSecs, l.Label, isActive)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpLoop, err)
		}
		return nil
	})
	if err != nil {
		return Loop{}, err
	}
	return l, nil
}

// GetLoops returns every loop for trackID, ordered by start position.
func (a *Analysis) GetLoops(ctx context.Context, trackID string) ([]Loop, error) {
	var out []Loop
	err := a.store.WithRead(ctx, func(db *sql.DB) error {
		rows, err := db.Query(`
			SELECT lo.id, t.id, lo.start_secs, lo.end_secs, lo.label, lo.is_active
			FROM loops lo JOIN tracks t ON t.row_id = lo.track_row_id
			WHERE t.id = ? ORDER BY lo.start_secs
		`, trackID)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpLoop, err)
		}
		defer rows.Close()
		for rows.Next() {
			l, err := scanLoop(rows)
			if err != nil {
				return err
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	return out, err
}

// UpdateLoop overwrites an existing loop's mutable fields.
func (a *Analysis) UpdateLoop(ctx context.Context, l Loop) error {
	return a.store.WithWrite(ctx, func(tx *sql.Tx) error {
		var trackRowID int64
		if err := tx.QueryRow(`SELECT track_row_id FROM loops WHERE id = ?`, l.ID).Scan(&trackRowID); err != nil {
			if err == sql.ErrNoRows {
				return engineerr.New(engineerr.KindNotFound, engineerr.OpLoop)
			}
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpLoop, err)
		}
		dur, err := trackDurationTx(tx, trackRowID)
		if err != nil {
			return err
		}
		if err := validateLoopRange(l, dur); err != nil {
			return err
		}
		isActive := 0
		if l.IsActive {
			isActive = 1
		}
		_, err = tx.Exec(`
			UPDATE loops SET start_secs = ?, end_secs = ?, label = ?, is_active = ?
			WHERE id = ?
		`, l.StartSecs, l.EndSecs, l.Label, isActive, l.ID)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpLoop, err)
		}
		return nil
	})
}

// DeleteLoop removes one loop. Idempotent.
func (a *Analysis) DeleteLoop(ctx context.Context, id string) error {
	return a.store.WithWrite(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM loops WHERE id = ?`, id); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpLoop, err)
		}
		return nil
	})
}

func validateLoopRange(l Loop, duration float64) error {
	if l.StartSecs < 0 || l.EndSecs <= l.StartSecs || l.EndSecs > duration {
		return engineerr.Invalid(engineerr.OpLoop, "end_secs", errLoopRange)
	}
	return nil
}

func scanLoop(row rowScanner) (Loop, error) {
	var l Loop
	var label sql.NullString
	var isActive int
	if err := row.Scan(&l.ID, &l.TrackID, &l.StartSecs, &l.EndSecs, &label, &isActive); err != nil {
		return Loop{}, engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpLoop, err)
	}
	if label.Valid {
		l.Label = &label.String
	}
	l.IsActive = isActive != 0
	return l, nil
}
