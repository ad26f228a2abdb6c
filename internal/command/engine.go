package command

import (
	"github.com/jvegaf/symphony-engine/internal/analysis"
	"github.com/jvegaf/symphony-engine/internal/catalog"
	"github.com/jvegaf/symphony-engine/internal/consolidate"
	"github.com/jvegaf/symphony-engine/internal/jobs"
	"github.com/jvegaf/symphony-engine/internal/store"
	"github.com/jvegaf/symphony-engine/internal/transcode"
	"github.com/jvegaf/symphony-engine/internal/waveform"
)

// Engine is the Command Surface: the single request/reply boundary the
// UI (or any other host process) drives the library engine through.
// Every exported method corresponds to one row of §6.1's command
// table.
type Engine struct {
	store        *store.Store
	catalog      *catalog.Catalog
	analysis     *analysis.Analysis
	waveform     *waveform.Cache
	consolidator *consolidate.Consolidator
	transcoder   transcode.Transcoder
	runner       *jobs.Runner
	bus          *Bus
}

// New wires every component behind one Engine. concurrency overrides
// the Job Runner's per-kind caps (nil uses the §4.6 defaults).
func New(
	st *store.Store,
	cat *catalog.Catalog,
	ana *analysis.Analysis,
	wf *waveform.Cache,
	cons *consolidate.Consolidator,
	trans transcode.Transcoder,
	concurrency map[jobs.Kind]int,
) *Engine {
	bus := NewBus()
	runner := jobs.NewRunner(jobSink{bus: bus}, concurrency)
	return &Engine{
		store: st, catalog: cat, analysis: ana, waveform: wf,
		consolidator: cons, transcoder: trans, runner: runner, bus: bus,
	}
}

// Events returns a new subscription to the Event Bus.
func (e *Engine) Events() <-chan Event {
	return e.bus.Subscribe()
}

// JobStatus reports a submitted job's current snapshot.
func (e *Engine) JobStatus(jobID string) (jobs.Job, bool) {
	return e.runner.Status(jobID)
}

// Close releases the Job Runner's background bookkeeping. It does not
// close the Store.
func (e *Engine) Close() {
	e.runner.Close()
}
