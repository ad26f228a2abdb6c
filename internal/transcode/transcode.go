// Package transcode wraps the external ffmpeg-style transcoder
// collaborator described in §6.3: invoked as a subprocess, its stderr
// progress lines forwarded to the caller, with a one-hour cache on the
// "is it even installed" check.
package transcode

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

// Transcoder is the capability Analysis/Command Surface depend on for
// MP3 conversion; fixed at build time per §9.
type Transcoder interface {
	Convert(ctx context.Context, srcPath, destPath string, bitrateKbps int, progress func(float64)) error
	Available(ctx context.Context) bool
}

// FFmpeg shells out to a system ffmpeg binary.
type FFmpeg struct {
	binary string

	mu            sync.Mutex
	checkedAt     time.Time
	lastAvailable bool
}

// NewFFmpeg returns a Transcoder invoking the named binary (typically
// "ffmpeg").
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

const availabilityCacheTTL = time.Hour

// Available reports whether the binary is on PATH, caching the result
// for an hour per §6.3.
func (f *FFmpeg) Available(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.checkedAt) < availabilityCacheTTL {
		return f.lastAvailable
	}
	_, err := exec.LookPath(f.binary)
	f.lastAvailable = err == nil
	f.checkedAt = time.Now()
	return f.lastAvailable
}

// durationLine matches ffmpeg's "Duration: HH:MM:SS.ms" banner line.
var durationLine = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// timeLine matches ffmpeg's progress "time=HH:MM:SS.ms" stderr updates.
var timeLine = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)

// Convert runs ffmpeg to re-encode srcPath to destPath as MP3 at
// bitrateKbps, parsing progress out of stderr per §6.3.
func (f *FFmpeg) Convert(ctx context.Context, srcPath, destPath string, bitrateKbps int, progress func(float64)) error {
	cmd := exec.CommandContext(ctx, f.binary,
		"-y", "-i", srcPath, "-b:a", fmt.Sprintf("%dk", bitrateKbps), destPath)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return engineerr.Wrap(engineerr.KindExternalUnavailable, engineerr.OpJobSubmit, err)
	}
	if err := cmd.Start(); err != nil {
		return engineerr.Wrap(engineerr.KindExternalUnavailable, engineerr.OpJobSubmit, err)
	}

	var totalSecs float64
	scanner := bufio.NewScanner(stderr)
	scanner.Split(bufio.ScanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if m := durationLine.FindStringSubmatch(line); m != nil && totalSecs == 0 {
			totalSecs = parseTimecode(m)
		}
		if m := timeLine.FindStringSubmatch(line); m != nil && totalSecs > 0 && progress != nil {
			elapsed := parseTimecode(m)
			if elapsed > totalSecs {
				elapsed = totalSecs
			}
			progress(elapsed / totalSecs)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return engineerr.Wrap(engineerr.KindCancelled, engineerr.OpJobSubmit, ctx.Err())
		}
		return engineerr.Wrap(engineerr.KindExternalUnavailable, engineerr.OpJobSubmit, err)
	}
	if progress != nil {
		progress(1.0)
	}
	return nil
}

func parseTimecode(m []string) float64 {
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	frac, _ := strconv.ParseFloat("0."+m[4], 64)
	return float64(h*3600+min*60+s) + frac
}
