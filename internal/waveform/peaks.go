package waveform

import (
	"context"
	"database/sql"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/jvegaf/symphony-engine/internal/decode"
	"github.com/jvegaf/symphony-engine/internal/engineerr"
	"github.com/jvegaf/symphony-engine/internal/fingerprint"
)

const (
	// peaksPerSecond is the target summary resolution from §4.5.
	peaksPerSecond = 100
	// maxPeaks caps the array for pathologically long files.
	maxPeaks = 200_000

	// progressThrottle bounds Progress events to roughly the Job
	// Runner's ~20/s ceiling (§4.6), applied here too since the UI
	// subscribes to the same kind of stream.
	progressThrottle = 50 * time.Millisecond

	readChunk = 2048
)

// generate runs one waveform build for trackID and broadcasts its
// events to every subscriber attached to gen. It removes the
// generation from the cache's in-flight registry when done, whichever
// way it ends.
func (c *Cache) generate(ctx context.Context, trackID, path string, durationSecs float64, gen *generation) {
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, trackID)
		c.mu.Unlock()
	}()

	target := targetPeakCount(durationSecs)
	src, err := decode.Open(path)
	if err != nil {
		gen.broadcast(Event{Kind: EventError, Msg: err.Error()})
		return
	}
	defer src.Close()

	sampleRate := src.Format().SampleRate
	totalSamples := int64(durationSecs * float64(sampleRate))
	if totalSamples <= 0 {
		totalSamples = 1
	}
	samplesPerPeak := totalSamples / int64(target)
	if samplesPerPeak <= 0 {
		samplesPerPeak = 1
	}

	peaks := make([]float32, 0, target)
	var bucketMax float32
	var bucketSamples int64
	var samplesSeen int64
	lastProgressAt := time.Time{}

	buf := make([]float32, readChunk)
	for {
		if ctx.Err() != nil {
			closeSubsSilently(gen)
			return
		}

		n, readErr := src.Read(ctx, buf)
		for i := 0; i < n; i++ {
			v := buf[i]
			if v < 0 {
				v = -v
			}
			if v > bucketMax {
				bucketMax = v
			}
			bucketSamples++
			samplesSeen++
			if bucketSamples >= samplesPerPeak {
				peaks = append(peaks, bucketMax)
				bucketMax = 0
				bucketSamples = 0
			}
		}

		if n > 0 && time.Since(lastProgressAt) >= progressThrottle {
			frac := math.Min(0.99, float64(samplesSeen)/float64(totalSamples))
			chunk := append([]float32(nil), peaks...)
			gen.broadcast(Event{Kind: EventProgress, Peaks: chunk, Progress: frac})
			lastProgressAt = time.Now()
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			gen.broadcast(Event{Kind: EventError, Msg: readErr.Error()})
			return
		}
	}
	if bucketSamples > 0 {
		peaks = append(peaks, bucketMax)
	}

	fp, err := fingerprint.Of(path)
	if err != nil {
		gen.broadcast(Event{Kind: EventError, Msg: err.Error()})
		return
	}

	if err := c.persistPeaks(context.Background(), trackID, peaks, sampleRate, fp); err != nil {
		gen.broadcast(Event{Kind: EventError, Msg: err.Error()})
		return
	}

	gen.broadcast(Event{Kind: EventComplete, Peaks: peaks, Progress: 1.0})
}

// closeSubsSilently is used on cancellation: per §5, no terminal event
// is owed to a cancelled generation (its subscribers already asked to
// stop listening), but the channels are still closed so any reader
// ranging over them returns rather than blocking forever.
func closeSubsSilently(gen *generation) {
	gen.mu.Lock()
	subs := gen.subs
	gen.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

func targetPeakCount(durationSecs float64) int {
	n := int(durationSecs * peaksPerSecond)
	if n < 1 {
		n = 1
	}
	if n > maxPeaks {
		n = maxPeaks
	}
	return n
}

func (c *Cache) persistPeaks(ctx context.Context, trackID string, peaks []float32, sampleRate int, fp string) error {
	blob := encodePeaks(peaks)
	return c.store.WithWrite(ctx, func(tx *sql.Tx) error {
		var rowID int64
		err := tx.QueryRow(`SELECT row_id FROM tracks WHERE id = ?`, trackID).Scan(&rowID)
		if err == sql.ErrNoRows {
			return engineerr.New(engineerr.KindNotFound, engineerr.OpWaveformGet)
		}
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpWaveformGet, err)
		}
		_, err = tx.Exec(`
			INSERT INTO waveform_peaks (track_row_id, peaks, sample_rate_summary, version, content_fingerprint)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT(track_row_id) DO UPDATE SET
				peaks = excluded.peaks, sample_rate_summary = excluded.sample_rate_summary,
				version = excluded.version, content_fingerprint = excluded.content_fingerprint
		`, rowID, blob, sampleRate, fp)
		if err != nil {
			return engineerr.Wrap(engineerr.KindStoreUnavailable, engineerr.OpWaveformGet, err)
		}
		return nil
	})
}

func encodePeaks(peaks []float32) []byte {
	buf := make([]byte, 4*len(peaks))
	for i, p := range peaks {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(p))
	}
	return buf
}

func decodePeaks(blob []byte) []float32 {
	n := len(blob) / 4
	peaks := make([]float32, n)
	for i := range peaks {
		peaks[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return peaks
}
