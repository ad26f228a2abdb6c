package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/llehouerou/go-mp3"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// mp3Source adapts llehouerou/go-mp3, which always decodes to stereo
// 16-bit PCM, down to a mono float32 stream. Grounded on
// internal/player/gomp3.go's goMP3Decoder.
type mp3Source struct {
	f       *os.File
	decoder *mp3.Decoder
	format  Format
	readBuf []byte
}

func openMP3(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, engineerr.OpDecode, err)
	}
	d, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
	}
	sampleRate := d.SampleRate()
	if sampleRate == 0 {
		f.Close()
		return nil, engineerr.New(engineerr.KindDecode, engineerr.OpDecode)
	}
	return &mp3Source{
		f:       f,
		decoder: d,
		format:  Format{SampleRate: sampleRate},
		readBuf: make([]byte, 8192),
	}, nil
}

func (s *mp3Source) Format() Format { return s.format }

func (s *mp3Source) Read(ctx context.Context, buf []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	bytesNeeded := len(buf) * 4 // stereo 16-bit per mono output sample
	if len(s.readBuf) < bytesNeeded {
		s.readBuf = make([]byte, bytesNeeded)
	}

	bytesRead, err := io.ReadFull(s.decoder, s.readBuf[:bytesNeeded])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
	}

	samples := bytesRead / 4
	for i := 0; i < samples; i++ {
		off := i * 4
		left := int16(binary.LittleEndian.Uint16(s.readBuf[off:]))
		right := int16(binary.LittleEndian.Uint16(s.readBuf[off+2:]))
		buf[i] = float32((float64(left) + float64(right)) / 2 / 32768.0)
	}

	if samples == 0 {
		return 0, io.EOF
	}
	return samples, nil
}

func (s *mp3Source) Close() error {
	return s.f.Close()
}
