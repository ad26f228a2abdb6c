package decode

import (
	"context"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// wavSource wraps go-audio/wav's PCM decoder, downmixing interleaved
// int samples of any channel count to mono float32 in [-1, 1]. WAV
// needs no third-party codec beyond container parsing — go-audio/wav
// is the ecosystem's own choice for that, per the pack's birdnet-go
// manifest.
type wavSource struct {
	f        *os.File
	dec      *wav.Decoder
	format   Format
	channels int
	bitDepth int
	buf      *audio.IntBuffer
}

const wavReadFrames = 2048

func openWAV(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, engineerr.OpDecode, err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, engineerr.New(engineerr.KindFormat, engineerr.OpDecode)
	}
	dec.ReadInfo()
	if dec.SampleRate == 0 || dec.NumChans == 0 {
		f.Close()
		return nil, engineerr.New(engineerr.KindFormat, engineerr.OpDecode)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	return &wavSource{
		f:        f,
		dec:      dec,
		format:   Format{SampleRate: int(dec.SampleRate)},
		channels: channels,
		bitDepth: bitDepth,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
			Data:           make([]int, wavReadFrames*channels),
			SourceBitDepth: bitDepth,
		},
	}, nil
}

func (s *wavSource) Format() Format { return s.format }

func (s *wavSource) Read(ctx context.Context, buf []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	want := len(buf)
	if want*s.channels != len(s.buf.Data) {
		s.buf.Data = make([]int, want*s.channels)
	}

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		return 0, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
	}
	frames := n / s.channels
	if frames == 0 {
		return 0, io.EOF
	}

	maxVal := float32(int64(1) << uint(s.bitDepth-1))
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < s.channels; c++ {
			sum += float32(s.buf.Data[i*s.channels+c]) / maxVal
		}
		buf[i] = sum / float32(s.channels)
	}
	return frames, nil
}

func (s *wavSource) Close() error {
	return s.f.Close()
}
