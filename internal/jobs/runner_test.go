package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jvegaf/symphony-engine/internal/jobs"
)

type recordingSink struct {
	mu        sync.Mutex
	progress  []jobs.ProgressEvent
	terminals []jobs.TerminalEvent
}

func (s *recordingSink) PublishProgress(ev jobs.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, ev)
}

func (s *recordingSink) PublishTerminal(ev jobs.TerminalEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminals = append(s.terminals, ev)
}

func (s *recordingSink) snapshot() ([]jobs.ProgressEvent, []jobs.TerminalEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jobs.ProgressEvent(nil), s.progress...), append([]jobs.TerminalEvent(nil), s.terminals...)
}

func waitForTerminal(t *testing.T, r *jobs.Runner, jobID string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := r.Status(jobID)
		require.True(t, ok)
		if job.State.Terminal() {
			return job
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state in time")
	return jobs.Job{}
}

func TestSubmitRunsTaskToCompletion(t *testing.T) {
	sink := &recordingSink{}
	r := jobs.NewRunner(sink, nil)
	defer r.Close()

	id := r.Submit(jobs.KindAnalyze, func(ctx context.Context, report func(float64, string, string)) error {
		report(0.5, "working", "")
		return nil
	})

	job := waitForTerminal(t, r, id)
	require.Equal(t, jobs.StateCompleted, job.State)
	require.Equal(t, 1.0, job.Progress)

	_, terminals := sink.snapshot()
	require.Len(t, terminals, 1)
	require.Equal(t, jobs.StateCompleted, terminals[0].State)
}

func TestSubmitPublishesFailureReason(t *testing.T) {
	sink := &recordingSink{}
	r := jobs.NewRunner(sink, nil)
	defer r.Close()

	id := r.Submit(jobs.KindAnalyze, func(ctx context.Context, report func(float64, string, string)) error {
		return require.AnError
	})

	job := waitForTerminal(t, r, id)
	require.Equal(t, jobs.StateFailed, job.State)
	require.Equal(t, require.AnError.Error(), job.FailReason)
}

func TestCancelStopsATask(t *testing.T) {
	sink := &recordingSink{}
	r := jobs.NewRunner(sink, nil)
	defer r.Close()

	started := make(chan struct{})
	id := r.Submit(jobs.KindAnalyze, func(ctx context.Context, report func(float64, string, string)) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	r.Cancel(id)

	job := waitForTerminal(t, r, id)
	require.Equal(t, jobs.StateCancelled, job.State)
}

func TestPerKindConcurrencyCapIsEnforced(t *testing.T) {
	sink := &recordingSink{}
	r := jobs.NewRunner(sink, map[jobs.Kind]int{jobs.KindWaveform: 1})
	defer r.Close()

	var running int32
	var mu sync.Mutex
	maxObserved := 0
	release := make(chan struct{})

	task := func(ctx context.Context, report func(float64, string, string)) error {
		mu.Lock()
		running++
		if int(running) > maxObserved {
			maxObserved = int(running)
		}
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}

	id1 := r.Submit(jobs.KindWaveform, task)
	id2 := r.Submit(jobs.KindWaveform, task)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	observed := maxObserved
	mu.Unlock()
	require.Equal(t, 1, observed, "per-kind cap of 1 should admit only one concurrent task")

	close(release)
	waitForTerminal(t, r, id1)
	waitForTerminal(t, r, id2)
}

func TestStatusReportsUnknownJobID(t *testing.T) {
	r := jobs.NewRunner(&recordingSink{}, nil)
	defer r.Close()

	_, ok := r.Status("does-not-exist")
	require.False(t, ok)
}
