package decode

import (
	"context"
	"io"
	"os"

	"github.com/gopxl/beep/v2/flac"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// flacSource wraps beep's FLAC decoder, downmixing its stereo float64
// output to mono float32. Grounded on internal/tags/audio.go's
// readFLACWithBeep fallback path (beep.flac.Decode + skipID3v2).
type flacSource struct {
	f        *os.File
	streamer interface {
		Stream(samples [][2]float64) (int, bool)
		Err() error
	}
	closer io.Closer
	format Format
	stereo [][2]float64
}

func openFLAC(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, engineerr.OpDecode, err)
	}
	if err := skipID3v2(f); err != nil {
		f.Close()
		return nil, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
	}

	streamer, format, err := flac.Decode(f)
	if err != nil {
		f.Close()
		return nil, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
	}

	return &flacSource{
		f:        f,
		streamer: streamer,
		closer:   streamer,
		format:   Format{SampleRate: int(format.SampleRate)},
		stereo:   make([][2]float64, 0),
	}, nil
}

func (s *flacSource) Format() Format { return s.format }

func (s *flacSource) Read(ctx context.Context, buf []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if cap(s.stereoBuf()) < len(buf) {
		s.stereo = make([][2]float64, len(buf))
	}
	frames := s.stereo[:len(buf)]

	n, ok := s.streamer.Stream(frames)
	if !ok {
		if err := s.streamer.Err(); err != nil {
			return 0, engineerr.Wrap(engineerr.KindDecode, engineerr.OpDecode, err)
		}
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		buf[i] = float32((frames[i][0] + frames[i][1]) / 2)
	}
	return n, nil
}

func (s *flacSource) stereoBuf() [][2]float64 { return s.stereo }

func (s *flacSource) Close() error {
	err := s.closer.Close()
	s.f.Close()
	return err
}

const id3Magic = "ID3"

// skipID3v2 advances r past a leading ID3v2 tag, if present, otherwise
// rewinds to the start. Grounded on internal/tags/audio.go's skipID3v2.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := r.Read(header)
	if err != nil {
		return err
	}
	if n < 10 || string(header[0:3]) != id3Magic {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
