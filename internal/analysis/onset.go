package analysis

import (
	"context"
	"io"
	"math"

	"github.com/jvegaf/symphony-engine/internal/decode"
	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

const (
	frameSize = 1024
	hopSize   = 512

	// onsetThresholdFactor is how far above the local energy average a
	// frame's energy must rise to be flagged as an onset.
	onsetThresholdFactor = 1.3
	// minOnsetGapSecs debounces onsets closer together than a very fast
	// drum roll, avoiding double-counting one hit as two.
	minOnsetGapSecs = 0.1

	// minBPM/maxBPM are the package defaults used when Analysis isn't
	// configured with a narrower BPMRange.
	minBPM = 60.0
	maxBPM = 200.0
	// bpmBinWidth is the histogram resolution used to find the dominant
	// inter-onset-interval cluster.
	bpmBinWidth = 0.5
)

// onsetResult carries everything beatgrid estimation needs out of one
// decode pass.
type onsetResult struct {
	onsetSecs []float64
	duration  float64
}

// detectOnsets streams src through an energy-envelope onset detector,
// checking ctx between every decoded frame so a cancellation token
// flipped mid-file aborts promptly, per §5's "checked at natural yield
// points (per decoded frame)".
func detectOnsets(ctx context.Context, src decode.Source, progress func(float64)) (onsetResult, error) {
	sampleRate := src.Format().SampleRate
	if sampleRate <= 0 {
		return onsetResult{}, engineerr.New(engineerr.KindDecode, engineerr.OpBeatgrid)
	}

	buf := make([]float32, frameSize)
	var (
		onsets       []float64
		samplesSeen  int64
		runningAvg   float64
		lastOnsetSec = math.Inf(-1)
		estTotal     float64 // running estimate of total duration for progress
	)

	for {
		if err := ctx.Err(); err != nil {
			return onsetResult{}, engineerr.Wrap(engineerr.KindCancelled, engineerr.OpBeatgrid, err)
		}

		n, err := src.Read(ctx, buf)
		if n > 0 {
			energy := rms(buf[:n])
			// Exponential moving average tracks the local noise floor
			// so onset detection adapts to quiet vs. loud passages.
			if runningAvg == 0 {
				runningAvg = energy
			} else {
				runningAvg = 0.9*runningAvg + 0.1*energy
			}

			t := float64(samplesSeen) / float64(sampleRate)
			if runningAvg > 0 && energy > runningAvg*onsetThresholdFactor && t-lastOnsetSec >= minOnsetGapSecs {
				onsets = append(onsets, t)
				lastOnsetSec = t
			}

			samplesSeen += int64(n)
			estTotal = float64(samplesSeen) / float64(sampleRate)
			if progress != nil && estTotal > 0 {
				// Progress during decode is a coarse estimate, capped
				// here at 0.95 so it stays below 1.0 until decode ends.
				progress(math.Min(0.95, estTotal/(estTotal+30)))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return onsetResult{}, engineerr.Wrap(engineerr.KindDecode, engineerr.OpBeatgrid, err)
		}
	}

	return onsetResult{onsetSecs: onsets, duration: float64(samplesSeen) / float64(sampleRate)}, nil
}

func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// estimateBeatgrid folds inter-onset intervals into a BPM histogram
// within [loBPM, hiBPM] (harmonic folding: a detected interval implying
// a BPM outside the range is doubled/halved until it lands in range),
// per §4.4. offset is the first onset; confidence is the dominant bin's
// mass over total IOI count.
func estimateBeatgrid(r onsetResult, loBPM, hiBPM float64) (bpm, offsetSecs, confidence float64) {
	if len(r.onsetSecs) < 2 {
		return 0, 0, 0
	}
	offsetSecs = r.onsetSecs[0]

	type bin struct {
		bpm   float64
		count int
	}
	hist := make(map[int]*bin)
	total := 0

	for i := 1; i < len(r.onsetSecs); i++ {
		ioi := r.onsetSecs[i] - r.onsetSecs[i-1]
		if ioi <= 0 {
			continue
		}
		cand := 60.0 / ioi
		cand = foldToRange(cand, loBPM, hiBPM)
		key := int(cand / bpmBinWidth)
		b, ok := hist[key]
		if !ok {
			b = &bin{bpm: cand}
			hist[key] = b
		}
		b.count++
		total++
	}

	if total == 0 {
		return 0, offsetSecs, 0
	}

	var dominant *bin
	for _, b := range hist {
		if dominant == nil || b.count > dominant.count {
			dominant = b
		}
	}
	bpm = dominant.bpm
	confidence = float64(dominant.count) / float64(total)
	return bpm, offsetSecs, confidence
}

// foldToRange doubles or halves bpm until it lands within [lo, hi].
func foldToRange(bpm, lo, hi float64) float64 {
	for bpm < lo {
		bpm *= 2
	}
	for bpm > hi {
		bpm /= 2
	}
	return bpm
}
