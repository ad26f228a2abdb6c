package decode_test

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvegaf/symphony-engine/internal/decode"
)

// writeMinimalAIFF writes a 16-bit mono big-endian PCM AIFF file.
func writeMinimalAIFF(t *testing.T, path string, sampleRate int, samples []int16) {
	t.Helper()

	ssndData := make([]byte, 8+len(samples)*2) // offset(4) + blockSize(4) + samples
	for i, s := range samples {
		binary.BigEndian.PutUint16(ssndData[8+i*2:], uint16(s))
	}

	comm := make([]byte, 18)
	binary.BigEndian.PutUint16(comm[0:2], 1)                    // numChannels
	binary.BigEndian.PutUint32(comm[2:6], uint32(len(samples))) // numSampleFrames
	binary.BigEndian.PutUint16(comm[6:8], 16)                   // sampleSize
	copy(comm[8:18], encodeExtendedFloat(float64(sampleRate)))

	var buf []byte
	buf = append(buf, "FORM"...)
	formSizePos := len(buf)
	buf = append(buf, 0, 0, 0, 0) // placeholder, filled below
	buf = append(buf, "AIFF"...)

	buf = append(buf, "COMM"...)
	buf = appendBE32(buf, uint32(len(comm)))
	buf = append(buf, comm...)

	buf = append(buf, "SSND"...)
	buf = appendBE32(buf, uint32(len(ssndData)))
	buf = append(buf, ssndData...)

	binary.BigEndian.PutUint32(buf[formSizePos:formSizePos+4], uint32(len(buf)-8))

	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func appendBE32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// encodeExtendedFloat is the inverse of decode's decodeExtendedFloat:
// value = mantissa * 2^(storedExp-16383-63), with mantissa normalized into
// [2^63, 2^64) using math.Frexp's frac*2^exp decomposition.
func encodeExtendedFloat(v float64) []byte {
	out := make([]byte, 10)
	if v == 0 {
		return out
	}
	frac, exp := math.Frexp(v) // v == frac * 2^exp, frac in [0.5, 1)
	mantissa := uint64(frac * (1 << 64))
	storedExp := uint16(exp - 1 + 16383)
	binary.BigEndian.PutUint16(out[0:2], storedExp)
	binary.BigEndian.PutUint64(out[2:10], mantissa)
	return out
}

func TestOpenAIFFDecodesMonoSamples(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.aiff")
	samples := []int16{0, 16384, -16384, 32767, -32768}
	writeMinimalAIFF(t, path, 44100, samples)

	src, err := decode.Open(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 44100, src.Format().SampleRate)

	var got []float32
	buf := make([]float32, 8)
	ctx := context.Background()
	for {
		n, err := src.Read(ctx, buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	require.Len(t, got, len(samples))
	assert.InDelta(t, 0, got[0], 0.001)
	assert.InDelta(t, 1.0, got[3], 0.01)
	assert.InDelta(t, -1.0, got[4], 0.01)
}

func TestOpenAIFFRejectsNonAIFFFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bogus.aiff")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an AIFF file"), 0o644))

	_, err := decode.Open(path)
	assert.Error(t, err)
}
