// Package scanner enumerates a filesystem root and classifies audio
// files, extracting lightweight tag and duration metadata. It never
// mutates catalog state — Catalog owns persistence.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
	"github.com/jvegaf/symphony-engine/internal/tags"
)

// workers bounds the concurrent tag-probe fan-out, matching the
// teacher's library.numWorkers.
const workers = 8

var extensions = map[string]bool{
	".mp3": true, ".flac": true, ".wav": true, ".m4a": true,
	".aac": true, ".ogg": true, ".aiff": true, ".opus": true,
}

// IsMusicFile reports whether path has a recognized audio extension.
func IsMusicFile(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Options configures a scan.
type Options struct {
	// FollowSymlinks, when true, includes symlinked audio files in the
	// scan; when false they are skipped. Symlinked directories are never
	// descended into, whatever this is set to.
	FollowSymlinks bool
}

// ScannedFile is one classified, tag-probed file. Err is set when the
// file could not be stat'ed or its audio properties could not be read;
// Path (and ModTime, once the stat succeeded) is still filled in and the
// remaining fields are left zero. A file whose tags cannot be parsed but
// whose audio properties can is reported without Err, titled after its
// file name. Per §4.2, per-file failures do not abort the scan.
type ScannedFile struct {
	Path         string
	ModTime      time.Time
	Title        string
	Artist       string
	Album        string
	AlbumArtist  string
	Genre        string
	Year         int
	TrackNumber  int
	DiscNumber   int
	DurationSecs float64
	Bitrate      int
	Err          error
}

// Scan walks root and sends one ScannedFile per discovered audio file on
// the returned channel. The channel is closed when the walk and all
// probes complete, or when ctx is cancelled. The sequence is restartable
// only by calling Scan again from the same root — no resume cursor is
// kept, per §4.2.
func Scan(ctx context.Context, root string, opts Options) <-chan ScannedFile {
	out := make(chan ScannedFile)

	go func() {
		defer close(out)

		paths := make(chan string)
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			defer close(paths)
			return walk(gctx, root, opts, paths)
		})

		for range workers {
			g.Go(func() error {
				for p := range paths {
					select {
					case <-gctx.Done():
						return gctx.Err()
					case out <- probe(p):
					}
				}
				return nil
			})
		}

		_ = g.Wait()
	}()

	return out
}

func walk(ctx context.Context, root string, opts Options, paths chan<- string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			return nil //nolint:nilerr // per-entry walk errors are skipped, not fatal to the scan
		}
		if d.IsDir() {
			return nil
		}
		if !opts.FollowSymlinks && d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if !IsMusicFile(path) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case paths <- path:
		}
		return nil
	})
}

// probe reads tag and duration metadata for one file, grounded on
// internal/tags.ReadWithAudio combining Read + ReadAudioInfo without a
// full PCM decode.
func probe(path string) ScannedFile {
	sf := ScannedFile{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		sf.Err = engineerr.Wrap(engineerr.KindIO, engineerr.OpScanFile, err)
		return sf
	}
	sf.ModTime = info.ModTime()

	fi, err := tags.ReadWithAudio(path)
	if err != nil {
		sf.Err = engineerr.Wrap(engineerr.KindFormat, engineerr.OpScanFile, err)
		return sf
	}

	sf.Title = fi.Title
	sf.Artist = fi.Artist
	sf.Album = fi.Album
	sf.AlbumArtist = fi.AlbumArtist
	sf.Genre = fi.Genre
	sf.Year = fi.Tag.Year()
	sf.TrackNumber = fi.TrackNumber
	sf.DiscNumber = fi.DiscNumber
	sf.DurationSecs = fi.Duration.Seconds()
	sf.Bitrate = bitrateFromInfo(fi.AudioInfo, info.Size())

	return sf
}

func bitrateFromInfo(audio tags.AudioInfo, fileSize int64) int {
	if audio.Duration <= 0 {
		return 0
	}
	return int(float64(fileSize*8) / audio.Duration.Seconds() / 1000)
}
