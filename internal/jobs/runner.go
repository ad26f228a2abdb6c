package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultConcurrency is the per-kind cap applied when no override is
// configured (§4.6: "waveform: 2, analyze: 2, import: 1, transcode:
// configurable").
var defaultConcurrency = map[Kind]int{
	KindImport:       1,
	KindAnalyze:      2,
	KindWaveform:     2,
	KindConsolidate:  1,
	KindTranscode:    2,
	KindBatchFixTags: 1,
}

// progressThrottle bounds publishing to roughly 20 events/second/job.
const progressThrottle = 50 * time.Millisecond

// cancelCheckInterval is how often a long-running Task should expect
// its context to be polled by the caller's own loop; the Runner itself
// cancels the context immediately on Cancel, so this constant documents
// the §4.6 "at minimum every 100ms" contract for Task authors rather
// than enforcing it directly.
const cancelCheckInterval = 100 * time.Millisecond

// retention is how long a terminal job's record is kept before GC, per
// §4.6 ("garbage-collected after a fixed retention").
const retention = 10 * time.Minute

// Task is the work a submitted job performs. report publishes progress
// in [0,1] with optional phase/detail text; the Runner throttles actual
// delivery. Task must check ctx and return promptly after cancellation.
type Task func(ctx context.Context, report func(progress float64, phase, detail string)) error

// Runner schedules Tasks with per-kind bounded concurrency and
// publishes their progress through a Sink.
type Runner struct {
	sink Sink

	mu       sync.Mutex
	jobs     map[string]*jobHandle
	sem      map[Kind]chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
}

type jobHandle struct {
	job    Job
	cancel context.CancelFunc
}

// NewRunner returns a Runner publishing to sink. concurrency overrides
// defaultConcurrency per kind; a zero or absent entry falls back to the
// default.
func NewRunner(sink Sink, concurrency map[Kind]int) *Runner {
	sem := make(map[Kind]chan struct{}, len(defaultConcurrency))
	for kind, n := range defaultConcurrency {
		if override, ok := concurrency[kind]; ok && override > 0 {
			n = override
		}
		sem[kind] = make(chan struct{}, n)
	}
	r := &Runner{
		sink:   sink,
		jobs:   make(map[string]*jobHandle),
		sem:    sem,
		stopCh: make(chan struct{}),
	}
	go r.gcLoop()
	return r
}

// Submit registers task under kind and starts it as soon as a
// concurrency slot opens, returning the job id immediately (§4.6:
// submit(kind, payload) -> job_id).
func (r *Runner) Submit(kind Kind, task Task) string {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	now := time.Now()
	h := &jobHandle{
		job: Job{
			ID: id, Kind: kind, State: StateQueued,
			CreatedAt: now, UpdatedAt: now,
		},
		cancel: cancel,
	}

	r.mu.Lock()
	r.jobs[id] = h
	r.mu.Unlock()

	go r.run(ctx, h, task)
	return id
}

func (r *Runner) run(ctx context.Context, h *jobHandle, task Task) {
	sem := r.sem[h.job.Kind]
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		r.transition(h, StateCancelled, "")
		return
	}
	defer func() { <-sem }()

	r.mu.Lock()
	h.job.State = StateRunning
	h.job.UpdatedAt = time.Now()
	r.mu.Unlock()

	var lastPublish time.Time
	report := func(progress float64, phase, detail string) {
		r.mu.Lock()
		if progress > h.job.Progress {
			h.job.Progress = progress
		}
		h.job.Phase = phase
		h.job.Detail = detail
		h.job.UpdatedAt = time.Now()
		snapshot := h.job
		r.mu.Unlock()

		if time.Since(lastPublish) < progressThrottle {
			return
		}
		lastPublish = time.Now()
		r.sink.PublishProgress(ProgressEvent{
			JobID: snapshot.ID, Kind: snapshot.Kind,
			Progress: snapshot.Progress, Phase: snapshot.Phase, Detail: snapshot.Detail,
		})
	}

	err := task(ctx, report)

	switch {
	case ctx.Err() != nil:
		r.transition(h, StateCancelled, "")
	case err != nil:
		r.transition(h, StateFailed, err.Error())
	default:
		// Final progress=1.0 is always emitted before the terminal
		// state, per §4.6, regardless of throttling.
		r.mu.Lock()
		h.job.Progress = 1.0
		snapshot := h.job
		r.mu.Unlock()
		r.sink.PublishProgress(ProgressEvent{JobID: snapshot.ID, Kind: snapshot.Kind, Progress: 1.0})
		r.transition(h, StateCompleted, "")
	}
}

func (r *Runner) transition(h *jobHandle, state State, failReason string) {
	r.mu.Lock()
	h.job.State = state
	h.job.FailReason = failReason
	h.job.UpdatedAt = time.Now()
	snapshot := h.job
	r.mu.Unlock()

	r.sink.PublishTerminal(TerminalEvent{
		JobID: snapshot.ID, Kind: snapshot.Kind, State: state, FailReason: failReason,
	})
}

// Cancel flips the cancellation token for jobID. It is a no-op (but not
// an error) if the job is already terminal or unknown to this Runner —
// callers distinguish "wrong job id" themselves via Status.
func (r *Runner) Cancel(jobID string) {
	r.mu.Lock()
	h, ok := r.jobs[jobID]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.mu.Lock()
	terminal := h.job.State.Terminal()
	h.job.CancelRequested = true
	r.mu.Unlock()
	if !terminal {
		h.cancel()
	}
}

// Status returns a snapshot of jobID's record, and whether it exists.
func (r *Runner) Status(jobID string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return h.job.Snapshot(), true
}

// Close stops the GC loop. It does not cancel in-flight jobs.
func (r *Runner) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Runner) gcLoop() {
	ticker := time.NewTicker(retention / 2)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.gcOnce()
		}
	}
}

func (r *Runner) gcOnce() {
	cutoff := time.Now().Add(-retention)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, h := range r.jobs {
		if h.job.State.Terminal() && h.job.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}
