package command

import (
	"context"

	"github.com/jvegaf/symphony-engine/internal/analysis"
	"github.com/jvegaf/symphony-engine/internal/jobs"
)

// AnalyzeBeatgrid submits a beatgrid-detection job for a single track
// and returns its job id immediately; progress and completion are
// reported on "analyze:progress" / "analyze:complete", per §6.1.
func (e *Engine) AnalyzeBeatgrid(trackID, path string) string {
	return e.runner.Submit(jobs.KindAnalyze, func(ctx context.Context, report func(float64, string, string)) error {
		_, err := e.analysis.AnalyzeBeatgrid(ctx, trackID, path, func(p float64) {
			report(p, "onset-detect", trackID)
		})
		return err
	})
}

// GetBeatgrid returns the stored beatgrid for trackID.
func (e *Engine) GetBeatgrid(ctx context.Context, trackID string) (analysis.Beatgrid, error) {
	return e.analysis.GetBeatgrid(ctx, trackID)
}

// UpdateBeatgrid adjusts a previously computed beatgrid's offset.
func (e *Engine) UpdateBeatgrid(ctx context.Context, trackID string, offsetSecs float64) error {
	return e.analysis.UpdateBeatgridOffset(ctx, trackID, offsetSecs)
}

// DeleteBeatgrid removes the beatgrid for trackID.
func (e *Engine) DeleteBeatgrid(ctx context.Context, trackID string) error {
	return e.analysis.DeleteBeatgrid(ctx, trackID)
}

// CreateCuePoint inserts a new cue point.
func (e *Engine) CreateCuePoint(ctx context.Context, cp analysis.CuePoint) (analysis.CuePoint, error) {
	return e.analysis.CreateCuePoint(ctx, cp)
}

// GetCuePoints returns every cue point for trackID, ordered by position.
func (e *Engine) GetCuePoints(ctx context.Context, trackID string) ([]analysis.CuePoint, error) {
	return e.analysis.GetCuePoints(ctx, trackID)
}

// UpdateCuePoint overwrites an existing cue point's mutable fields.
func (e *Engine) UpdateCuePoint(ctx context.Context, cp analysis.CuePoint) error {
	return e.analysis.UpdateCuePoint(ctx, cp)
}

// DeleteCuePoint removes one cue point.
func (e *Engine) DeleteCuePoint(ctx context.Context, id string) error {
	return e.analysis.DeleteCuePoint(ctx, id)
}

// CreateLoop inserts a new loop.
func (e *Engine) CreateLoop(ctx context.Context, l analysis.Loop) (analysis.Loop, error) {
	return e.analysis.CreateLoop(ctx, l)
}

// GetLoops returns every loop for trackID, ordered by start position.
func (e *Engine) GetLoops(ctx context.Context, trackID string) ([]analysis.Loop, error) {
	return e.analysis.GetLoops(ctx, trackID)
}

// UpdateLoop overwrites an existing loop's mutable fields.
func (e *Engine) UpdateLoop(ctx context.Context, l analysis.Loop) error {
	return e.analysis.UpdateLoop(ctx, l)
}

// DeleteLoop removes one loop.
func (e *Engine) DeleteLoop(ctx context.Context, id string) error {
	return e.analysis.DeleteLoop(ctx, id)
}

// BatchFixTags submits a tag-lookup-and-correction job over trackIDs.
// In automatic mode, high-confidence candidates are applied without
// further input. The ranked candidates are not kept in the job record
// or published on the Bus.
func (e *Engine) BatchFixTags(trackIDs []string, automatic bool) string {
	return e.runner.Submit(jobs.KindBatchFixTags, func(ctx context.Context, report func(float64, string, string)) error {
		results := e.analysis.BatchFixTags(ctx, trackIDs, automatic)
		if len(results) == 0 {
			report(1.0, "fix-tags", "")
			return nil
		}
		for i, r := range results {
			detail := r.TrackID
			if r.Err != nil {
				detail = r.Err.Error()
			}
			report(float64(i+1)/float64(len(results)), "fix-tags", detail)
		}
		return nil
	})
}

// ApplyTagFix writes a previously surfaced candidate onto a track.
func (e *Engine) ApplyTagFix(ctx context.Context, trackID string, c analysis.TagFixResult) error {
	if c.Applied != nil {
		return e.analysis.ApplyTagFix(ctx, trackID, *c.Applied)
	}
	if len(c.Candidates) > 0 {
		return e.analysis.ApplyTagFix(ctx, trackID, c.Candidates[0])
	}
	return nil
}
