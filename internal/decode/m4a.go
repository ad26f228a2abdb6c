package decode

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/llehouerou/alac"
	"github.com/llehouerou/go-faad2"
	"github.com/llehouerou/go-m4a"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// m4aSource wraps go-m4a's container reader with an AAC (go-faad2) or
// ALAC (llehouerou/alac) decoder, downmixed to mono. Grounded on
// internal/player/m4a.go's m4aDecoder, minus seeking and gapless
// bookkeeping that only matter to live playback.
type m4aSource struct {
	f         *os.File
	container *m4a.Reader
	codecType m4a.CodecType
	format    Format

	aacDecoder  *faad2.Decoder
	alacDecoder *alac.Alac

	channels   int
	sampleSize int
	idx        int

	pcm    []float32
	pcmPos int
}

func openM4A(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, engineerr.OpDecode, err)
	}

	container, err := m4a.Open(f)
	if err != nil {
		f.Close()
		return nil, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
	}

	s := &m4aSource{
		f:          f,
		container:  container,
		codecType:  container.Codec(),
		format:     Format{SampleRate: int(container.SampleRate())},
		channels:   int(container.Channels()),
		sampleSize: int(container.SampleSize()),
	}

	switch s.codecType {
	case m4a.CodecAAC:
		decoder, err := faad2.NewDecoder(context.Background())
		if err != nil {
			f.Close()
			return nil, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
		}
		if err := decoder.Init(context.Background(), container.CodecConfig()); err != nil {
			decoder.Close(context.Background())
			f.Close()
			return nil, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
		}
		s.aacDecoder = decoder
	case m4a.CodecALAC:
		decoder, err := alac.NewWithConfig(alac.Config{
			SampleRate:  int(container.SampleRate()),
			SampleSize:  s.sampleSize,
			NumChannels: s.channels,
			FrameSize:   4096,
		})
		if err != nil {
			f.Close()
			return nil, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
		}
		s.alacDecoder = decoder
	default:
		f.Close()
		return nil, engineerr.New(engineerr.KindFormat, engineerr.OpDecode)
	}

	return s, nil
}

func (s *m4aSource) Format() Format { return s.format }

func (s *m4aSource) Read(ctx context.Context, buf []float32) (int, error) {
	n := 0
	for n < len(buf) {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		if s.pcmPos < len(s.pcm) {
			for n < len(buf) && s.pcmPos < len(s.pcm) {
				buf[n] = s.pcm[s.pcmPos]
				s.pcmPos++
				n++
			}
			continue
		}

		if s.idx >= s.container.SampleCount() {
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}

		sampleData, err := s.container.ReadSample(s.idx)
		if err != nil {
			return n, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
		}
		s.idx++

		switch s.codecType {
		case m4a.CodecAAC:
			pcm, err := s.aacDecoder.Decode(context.Background(), sampleData)
			if err != nil {
				return n, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
			}
			s.pcm = int16ToMono(pcm, s.channels)
		case m4a.CodecALAC:
			raw := s.alacDecoder.Decode(sampleData)
			s.pcm = alacToMono(raw, s.channels, s.sampleSize)
		default:
			return n, engineerr.New(engineerr.KindFormat, engineerr.OpDecode)
		}
		s.pcmPos = 0
	}
	return n, nil
}

func int16ToMono(pcm []int16, channels int) []float32 {
	if channels != 2 {
		out := make([]float32, len(pcm))
		for i, v := range pcm {
			out[i] = float32(v) / 32768.0
		}
		return out
	}
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32((float64(pcm[i*2]) + float64(pcm[i*2+1])) / 2 / 32768.0)
	}
	return out
}

func alacToMono(data []byte, channels, sampleSize int) []float32 {
	bytesPerSample := 2
	if sampleSize == 24 {
		bytesPerSample = 3
	}
	bytesPerFrame := bytesPerSample * channels
	if bytesPerFrame == 0 {
		return nil
	}
	frameCount := len(data) / bytesPerFrame
	out := make([]float32, frameCount)

	for i := 0; i < frameCount; i++ {
		offset := i * bytesPerFrame
		left := readSigned(data[offset:], bytesPerSample)
		right := left
		if channels == 2 {
			right = readSigned(data[offset+bytesPerSample:], bytesPerSample)
		}
		max := float64(int64(1) << uint(bytesPerSample*8-1))
		out[i] = float32((float64(left) + float64(right)) / 2 / max)
	}
	return out
}

func readSigned(b []byte, width int) int32 {
	switch width {
	case 2:
		return int32(int16(b[0]) | int16(b[1])<<8)
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return v
	default:
		return 0
	}
}

func (s *m4aSource) Close() error {
	if s.aacDecoder != nil {
		s.aacDecoder.Close(context.Background())
	}
	return s.f.Close()
}

var errUnsupportedM4ACodec = errors.New("m4a: unsupported codec")
