package analysis

import (
	"context"

	"github.com/jvegaf/symphony-engine/internal/catalog"
	"github.com/jvegaf/symphony-engine/internal/tagservice"
)

// autoSelectThreshold is the similarity score above which automatic
// mode applies a candidate without surfacing it to the UI, per §4.4.
const autoSelectThreshold = 0.85

// TagFixResult is one track's outcome from a batch tag-fix run.
type TagFixResult struct {
	TrackID    string
	Candidates []tagservice.Candidate
	// Applied is the candidate that was written to the track, set only
	// when Automatic was requested and a candidate scored high enough.
	Applied *tagservice.Candidate
	Err     error
}

// BatchFixTags looks up Beatport-style corrections for each track. In
// automatic mode, a candidate scoring >= autoSelectThreshold is applied
// immediately; otherwise every track's ranked candidates are returned
// for the caller to apply via ApplyTagFix. A per-track lookup failure
// (including a tag-service timeout) is recorded in that track's Err and
// does not abort the batch, per §7.
func (a *Analysis) BatchFixTags(ctx context.Context, trackIDs []string, automatic bool) []TagFixResult {
	results := make([]TagFixResult, 0, len(trackIDs))
	for _, id := range trackIDs {
		results = append(results, a.fixOneTrack(ctx, id, automatic))
	}
	return results
}

func (a *Analysis) fixOneTrack(ctx context.Context, trackID string, automatic bool) TagFixResult {
	track, err := a.catalog.GetTrack(ctx, trackID)
	if err != nil {
		return TagFixResult{TrackID: trackID, Err: err}
	}

	candidates, err := a.search.Search(ctx, track.Title, track.Artist, track.DurationSecs)
	if err != nil {
		return TagFixResult{TrackID: trackID, Err: err}
	}

	result := TagFixResult{TrackID: trackID, Candidates: candidates}
	if !automatic || len(candidates) == 0 {
		return result
	}

	best := bestCandidate(candidates)
	if best.SimilarityScore < autoSelectThreshold {
		return result
	}
	if err := a.ApplyTagFix(ctx, trackID, best); err != nil {
		result.Err = err
		return result
	}
	result.Applied = &best
	return result
}

func bestCandidate(candidates []tagservice.Candidate) tagservice.Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.SimilarityScore > best.SimilarityScore {
			best = c
		}
	}
	return best
}

// ApplyTagFix writes a selected candidate onto a track: BPM and key are
// patched when the candidate supplies them, beatport_id is set, and
// tags_fixed is raised, per §3's "if beatport_id set then tags marked
// 'fixed'" invariant. The candidate's genre is not applied.
func (a *Analysis) ApplyTagFix(ctx context.Context, trackID string, c tagservice.Candidate) error {
	remoteID := c.RemoteID
	fixed := true
	patch := catalog.TrackPatch{
		BeatportID: ptrToPtrPtr(&remoteID),
		TagsFixed:  &fixed,
	}
	if c.BPM != nil {
		patch.BPM = ptrToPtrPtr(c.BPM)
	}
	if c.Key != nil {
		patch.Key = ptrToPtrPtr(c.Key)
	}
	return a.catalog.UpdateMetadata(ctx, trackID, patch)
}

// ptrToPtrPtr lifts a *T into a **T, the shape TrackPatch's optional
// fields require to distinguish "leave untouched" (nil) from "set to
// this value" (non-nil pointing at v).
func ptrToPtrPtr[T any](v *T) **T {
	return &v
}
