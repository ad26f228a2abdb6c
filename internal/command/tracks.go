package command

import (
	"context"

	"github.com/jvegaf/symphony-engine/internal/catalog"
	"github.com/jvegaf/symphony-engine/internal/jobs"
)

// ImportLibrary submits a long-running scan+insert job over roots and
// returns its job id immediately; progress and completion are reported
// on "import:progress" / "catalog:changed", per §6.1.
func (e *Engine) ImportLibrary(roots []string) string {
	return e.runner.Submit(jobs.KindImport, func(ctx context.Context, report func(float64, string, string)) error {
		return e.importRoots(ctx, roots, report)
	})
}

// GetAllTracks returns every track matching filter, sorted by sort.
func (e *Engine) GetAllTracks(ctx context.Context, filter catalog.TrackFilter, sort catalog.SortKey) ([]catalog.Track, error) {
	return e.catalog.ListTracks(ctx, filter, sort)
}

// UpdateTrackMetadata applies a partial patch to a single track.
func (e *Engine) UpdateTrackMetadata(ctx context.Context, id string, patch catalog.TrackPatch) error {
	return e.catalog.UpdateMetadata(ctx, id, patch)
}

// UpdateTrackRating is the common single-field case of UpdateTrackMetadata,
// surfaced as its own command per §6.1's UI affordance for star ratings.
func (e *Engine) UpdateTrackRating(ctx context.Context, id string, rating int) error {
	return e.catalog.UpdateMetadata(ctx, id, catalog.TrackPatch{Rating: &rating})
}

// DeleteTrack removes a track and its dependent analysis artifacts.
func (e *Engine) DeleteTrack(ctx context.Context, id string) error {
	return e.catalog.DeleteTrack(ctx, id)
}
