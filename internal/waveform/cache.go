package waveform

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
	"github.com/jvegaf/symphony-engine/internal/fingerprint"
	"github.com/jvegaf/symphony-engine/internal/store"
)

// subscriberBuffer bounds each subscription channel. Progress events may
// be dropped under back-pressure (mirroring the Job Runner's bus
// policy, §5); Complete/Error are always delivered, blocking briefly if
// necessary.
const subscriberBuffer = 64

// Cache is the Waveform Cache component: content-addressed peak
// storage over Store, plus the in-flight single-flight generation
// registry.
type Cache struct {
	store *store.Store

	mu       sync.Mutex
	inFlight map[string]*generation
}

// New returns a Cache backed by st.
func New(st *store.Store) *Cache {
	return &Cache{store: st, inFlight: make(map[string]*generation)}
}

type generation struct {
	mu       sync.Mutex
	subs     []chan Event
	refcount int
	cancel   context.CancelFunc
	final    *Event // terminal event, once broadcast
}

func (g *generation) subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	g.mu.Lock()
	if g.final != nil {
		ev := *g.final
		g.mu.Unlock()
		ch <- ev
		close(ch)
		return ch
	}
	g.subs = append(g.subs, ch)
	g.refcount++
	g.mu.Unlock()
	return ch
}

// broadcast delivers ev to every subscriber currently attached.
// Progress events use a non-blocking send (drop on a full channel);
// terminal events block until delivered, then close every channel. A
// subscriber that attaches after the terminal event receives it alone.
func (g *generation) broadcast(ev Event) {
	terminal := ev.Kind == EventComplete || ev.Kind == EventError
	g.mu.Lock()
	subs := append([]chan Event(nil), g.subs...)
	if terminal {
		g.final = &ev
	}
	g.mu.Unlock()

	for _, ch := range subs {
		if terminal {
			ch <- ev
			close(ch)
			continue
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Get subscribes to trackID's peak stream. Per §4.5's critical
// sequencing rule, the subscription channel is created and returned
// before any backend build is triggered — a cached hit or an
// already-in-flight generation both attach the same way a fresh build
// does.
func (c *Cache) Get(ctx context.Context, trackID, path string, durationSecs float64) (<-chan Event, error) {
	c.mu.Lock()

	if gen, ok := c.inFlight[trackID]; ok {
		ch := gen.subscribe()
		c.mu.Unlock()
		return ch, nil
	}

	cached, hit, err := c.loadValidCache(ctx, trackID, path)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if hit {
		ch := make(chan Event, 1)
		c.mu.Unlock()
		// Registration (the channel already exists and is returned to
		// the caller) happens before this goroutine ever sends, so the
		// ordering rule holds for cache hits too.
		go func() {
			ch <- Event{Kind: EventComplete, Peaks: cached}
			close(ch)
		}()
		return ch, nil
	}

	genCtx, cancel := context.WithCancel(context.Background())
	gen := &generation{cancel: cancel}
	ch := gen.subscribe()
	c.inFlight[trackID] = gen
	c.mu.Unlock()

	go c.generate(genCtx, trackID, path, durationSecs, gen)
	return ch, nil
}

// Cancel requests cancellation of trackID's in-flight generation. It
// decrements the caller's subscription and only actually aborts the
// underlying job once every subscriber has cancelled, per §4.5/§5. It
// reports whether a generation was found (not whether it was aborted).
func (c *Cache) Cancel(trackID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen, ok := c.inFlight[trackID]
	if !ok {
		return false
	}
	gen.mu.Lock()
	gen.refcount--
	last := gen.refcount <= 0
	gen.mu.Unlock()

	if last {
		gen.cancel()
		delete(c.inFlight, trackID)
	}
	return true
}

// ClearAll drops every cached peak array. In-flight generations are
// left to finish (or be cancelled) on their own; their results simply
// will not be persisted if the caller already cancelled.
func (c *Cache) ClearAll(ctx context.Context) error {
	return c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM waveform_peaks`); err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpWaveformGet, err)
		}
		return nil
	})
}

// loadValidCache returns the cached peaks for trackID if present and
// its fingerprint still matches the file at path.
func (c *Cache) loadValidCache(ctx context.Context, trackID, path string) ([]float32, bool, error) {
	currentFP, err := fingerprint.Of(path)
	if err != nil {
		return nil, false, err
	}

	var (
		peaks   []float32
		storedFP string
		found   bool
	)
	err = c.store.WithRead(ctx, func(db *sql.DB) error {
		var blob []byte
		row := db.QueryRow(`
			SELECT wp.peaks, wp.content_fingerprint
			FROM waveform_peaks wp JOIN tracks t ON t.row_id = wp.track_row_id
			WHERE t.id = ?
		`, trackID)
		if err := row.Scan(&blob, &storedFP); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpWaveformGet, err)
		}
		found = true
		peaks = decodePeaks(blob)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !found || storedFP != currentFP {
		return nil, false, nil
	}
	return peaks, true, nil
}
