package command

import (
	"context"
	"errors"

	"github.com/jvegaf/symphony-engine/internal/jobs"
	"github.com/jvegaf/symphony-engine/internal/waveform"
)

// GetWaveform submits a Job Runner task that subscribes to trackID's
// peak stream (generating it if not already cached) and republishes
// each event onto the Event Bus under the waveform:* topics, per
// §4.5/§4.8. The returned job id lets a caller correlate the bus events
// it receives back to this call; routing generation through the Runner
// also gives it the same per-kind concurrency cap (§4.6: "waveform: 2")
// that every other long-running command gets, rather than running
// unbounded in the Waveform Cache's own goroutine.
func (e *Engine) GetWaveform(ctx context.Context, trackID, path string, durationSecs float64) string {
	return e.runner.Submit(jobs.KindWaveform, func(taskCtx context.Context, report func(float64, string, string)) error {
		ch, err := e.waveform.Get(taskCtx, trackID, path, durationSecs)
		if err != nil {
			e.bus.Publish(Event{Topic: TopicWaveformError, TrackID: trackID, Payload: err.Error()})
			return err
		}
		for ev := range ch {
			switch ev.Kind {
			case waveform.EventProgress:
				report(ev.Progress, "generate", "")
			case waveform.EventComplete:
				e.bus.Publish(Event{Topic: TopicWaveformComplete, TrackID: trackID, Payload: ev.Peaks})
				return nil
			case waveform.EventError:
				e.bus.Publish(Event{Topic: TopicWaveformError, TrackID: trackID, Payload: ev.Msg})
				return errors.New(ev.Msg)
			}
		}
		return nil
	})
}

// CancelWaveform requests cancellation of trackID's in-flight
// generation on behalf of one subscriber. This is independent of the
// Job Runner: the Waveform Cache owns its own refcounted single-flight
// generation per track_id (§4.5), so cancellation is routed there
// directly rather than through runner.Cancel — the Runner job submitted
// by GetWaveform simply ends on its own once the cache's channel closes.
func (e *Engine) CancelWaveform(trackID string) bool {
	return e.waveform.Cancel(trackID)
}

// ClearWaveformCache drops every cached peak array.
func (e *Engine) ClearWaveformCache(ctx context.Context) error {
	return e.waveform.ClearAll(ctx)
}
