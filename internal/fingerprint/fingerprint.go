// Package fingerprint computes the cheap content fingerprint used by
// both the Waveform Cache (to detect a track's file changing under it)
// and the Consolidator (to match a moved file, or a duplicate, without
// re-reading whole files). The fingerprint hashes file size, mtime, and
// sampled byte windows from the start and end of the file — enough to
// distinguish re-encodes and edits without a full-file checksum.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// sampleWindow is how many bytes are hashed from each end of the file.
const sampleWindow = 64 * 1024

// Of computes the fingerprint for the file at path.
func Of(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", engineerr.Wrap(engineerr.KindIO, engineerr.OpScanFile, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", engineerr.Wrap(engineerr.KindIO, engineerr.OpScanFile, err)
	}

	h := sha256.New()
	writeInt64(h, info.Size())
	writeInt64(h, info.ModTime().UnixNano())

	head := make([]byte, sampleWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", engineerr.Wrap(engineerr.KindIO, engineerr.OpScanFile, err)
	}
	h.Write(head[:n])

	if info.Size() > sampleWindow {
		tailStart := info.Size() - sampleWindow
		if tailStart < int64(n) {
			tailStart = int64(n)
		}
		if _, err := f.Seek(tailStart, io.SeekStart); err != nil {
			return "", engineerr.Wrap(engineerr.KindIO, engineerr.OpScanFile, err)
		}
		tail := make([]byte, sampleWindow)
		tn, err := io.ReadFull(f, tail)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return "", engineerr.Wrap(engineerr.KindIO, engineerr.OpScanFile, err)
		}
		h.Write(tail[:tn])
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeInt64(h io.Writer, v int64) {
	var b [8]byte
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	h.Write(b[:])
}
