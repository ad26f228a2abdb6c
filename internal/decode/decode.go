// Package decode provides the DecodeSource capability: a mono,
// downsampled-to-nothing (channel-summed, not resampled) PCM stream over
// an audio file, used by Analysis (beatgrid) and Waveform Cache (peak
// generation). It deliberately does not implement seeking, volume,
// gapless transitions, or any other playback-session concern — those
// belong to the audio playback device driver, an external peer.
package decode

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// Format describes the stream Source produces.
type Format struct {
	SampleRate int
}

// Source streams mono float32 samples in [-1, 1]. Callers read until
// (0, io.EOF). Read respects ctx cancellation between internal decode
// steps so long files can be abandoned cooperatively, per §5.
type Source interface {
	Format() Format
	// Read fills buf with mono samples and returns how many were
	// written. It returns io.EOF once the stream is exhausted.
	Read(ctx context.Context, buf []float32) (int, error)
	Close() error
}

var supportedExt = map[string]bool{
	".mp3": true, ".flac": true, ".ogg": true, ".opus": true,
	".m4a": true, ".aac": true, ".wav": true, ".aiff": true,
}

// Supported reports whether ext (including the leading dot) is a format
// this package can decode.
func Supported(ext string) bool {
	return supportedExt[strings.ToLower(ext)]
}

// Open dispatches to the format-specific decoder by file extension,
// mirroring the teacher's player.openTrack dispatch but stripped of
// gapless/preload/speaker concerns.
func Open(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3":
		return openMP3(path)
	case ".flac":
		return openFLAC(path)
	case ".ogg", ".opus":
		return openOgg(path)
	case ".m4a", ".aac":
		return openM4A(path)
	case ".wav":
		return openWAV(path)
	case ".aiff":
		return openAIFF(path)
	default:
		return nil, engineerr.New(engineerr.KindFormat, engineerr.OpDecode)
	}
}

// downmixStereo averages interleaved stereo frames into mono, writing
// them to mono and returning the number of mono samples produced.
func downmixStereo(interleaved []float64, mono []float32) int {
	n := len(interleaved) / 2
	for i := 0; i < n; i++ {
		mono[i] = float32((interleaved[2*i] + interleaved[2*i+1]) / 2)
	}
	return n
}

var errShortRead = errors.New("decode: short read from underlying codec")
