package decode

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// aiffSource is a minimal AIFF (big-endian PCM) container reader: FORM
// header, COMM chunk for format, SSND chunk for sample data. No pack
// example wraps AIFF with a third-party library, so this follows
// internal/fingerprint's precedent of a small, justified stdlib parser
// for a container simple enough not to need one.
type aiffSource struct {
	f          *os.File
	format     Format
	channels   int
	bitDepth   int
	remaining  int64 // bytes left in SSND's data
	bytesPerFr int
}

func openAIFF(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, engineerr.OpDecode, err)
	}

	hdr := make([]byte, 12)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, engineerr.Wrap(engineerr.KindFormat, engineerr.OpDecode, err)
	}
	if string(hdr[0:4]) != "FORM" || (string(hdr[8:12]) != "AIFF" && string(hdr[8:12]) != "AIFC") {
		f.Close()
		return nil, engineerr.New(engineerr.KindFormat, engineerr.OpDecode)
	}

	src := &aiffSource{f: f}
	if err := src.readChunks(); err != nil {
		f.Close()
		return nil, err
	}
	if src.channels == 0 || src.format.SampleRate == 0 {
		f.Close()
		return nil, engineerr.New(engineerr.KindFormat, engineerr.OpDecode)
	}
	return src, nil
}

// readChunks scans chunk headers until SSND's data is positioned under
// the file cursor, recording COMM's format along the way.
func (s *aiffSource) readChunks() error {
	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(s.f, chunkHdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return engineerr.New(engineerr.KindFormat, engineerr.OpDecode)
			}
			return engineerr.Wrap(engineerr.KindFormat, engineerr.OpDecode, err)
		}
		id := string(chunkHdr[0:4])
		size := int64(binary.BigEndian.Uint32(chunkHdr[4:8]))

		switch id {
		case "COMM":
			body := make([]byte, size)
			if _, err := io.ReadFull(s.f, body); err != nil {
				return engineerr.Wrap(engineerr.KindFormat, engineerr.OpDecode, err)
			}
			s.channels = int(binary.BigEndian.Uint16(body[0:2]))
			s.bitDepth = int(binary.BigEndian.Uint16(body[6:8]))
			s.format = Format{SampleRate: int(decodeExtendedFloat(body[8:18]))}
			s.bytesPerFr = s.channels * (s.bitDepth / 8)
		case "SSND":
			// offset(4) + blockSize(4) precede the raw sample data.
			var offsetBlock [8]byte
			if _, err := io.ReadFull(s.f, offsetBlock[:]); err != nil {
				return engineerr.Wrap(engineerr.KindFormat, engineerr.OpDecode, err)
			}
			offset := int64(binary.BigEndian.Uint32(offsetBlock[0:4]))
			if offset > 0 {
				if _, err := s.f.Seek(offset, io.SeekCurrent); err != nil {
					return engineerr.Wrap(engineerr.KindIO, engineerr.OpDecode, err)
				}
			}
			s.remaining = size - 8 - offset
			return nil
		default:
			if size%2 != 0 {
				size++ // chunks are word-aligned
			}
			if _, err := s.f.Seek(size, io.SeekCurrent); err != nil {
				return engineerr.Wrap(engineerr.KindIO, engineerr.OpDecode, err)
			}
		}
	}
}

// decodeExtendedFloat parses the 80-bit IEEE 754 extended-precision
// float AIFF uses for sampleRate.
func decodeExtendedFloat(b []byte) float64 {
	sign := 1.0
	if b[0]&0x80 != 0 {
		sign = -1.0
	}
	exp := int(binary.BigEndian.Uint16(b[0:2])&0x7fff) - 16383
	mantissa := binary.BigEndian.Uint64(b[2:10])
	return sign * float64(mantissa) * math.Pow(2, float64(exp-63))
}

func (s *aiffSource) Format() Format { return s.format }

func (s *aiffSource) Read(ctx context.Context, buf []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.bytesPerFr <= 0 || s.remaining <= 0 {
		return 0, io.EOF
	}

	bytesPerSample := s.bitDepth / 8
	want := int64(len(buf)) * int64(s.bytesPerFr)
	if want > s.remaining {
		want = s.remaining
	}
	frames := int(want / int64(s.bytesPerFr))
	if frames == 0 {
		return 0, io.EOF
	}

	raw := make([]byte, frames*s.bytesPerFr)
	n, err := io.ReadFull(s.f, raw)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, engineerr.Wrap(engineerr.KindIO, engineerr.OpDecode, err)
	}
	s.remaining -= int64(n)
	frames = n / s.bytesPerFr

	maxVal := float32(int64(1) << uint(s.bitDepth-1))
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < s.channels; c++ {
			off := i*s.bytesPerFr + c*bytesPerSample
			sum += float32(decodeBigEndianSample(raw[off:off+bytesPerSample])) / maxVal
		}
		buf[i] = sum / float32(s.channels)
	}
	return frames, nil
}

func decodeBigEndianSample(b []byte) int32 {
	var v int32
	for _, by := range b {
		v = v<<8 | int32(by)
	}
	// sign-extend from the actual bit width
	shift := uint(32 - 8*len(b))
	return v << shift >> shift
}

func (s *aiffSource) Close() error {
	return s.f.Close()
}
