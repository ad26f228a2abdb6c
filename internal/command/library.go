package command

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jvegaf/symphony-engine/internal/catalog"
	"github.com/jvegaf/symphony-engine/internal/engineerr"
	"github.com/jvegaf/symphony-engine/internal/fingerprint"
	"github.com/jvegaf/symphony-engine/internal/jobs"
	"github.com/jvegaf/symphony-engine/internal/scanner"
)

// importRoots walks roots and inserts one track per newly discovered
// audio file, skipping paths already catalogued. Files that fail to
// probe are skipped without being counted and do not abort the import.
func (e *Engine) importRoots(ctx context.Context, roots []string, report func(progress float64, phase, detail string)) error {
	var files []scanner.ScannedFile
	for i, root := range roots {
		for sf := range scanner.Scan(ctx, root, scanner.Options{}) {
			if sf.Err == nil {
				files = append(files, sf)
			}
			if ctx.Err() != nil {
				return engineerr.Wrap(engineerr.KindCancelled, engineerr.OpImport, ctx.Err())
			}
		}
		if len(roots) > 0 {
			report(0.5*float64(i+1)/float64(len(roots)), "scan", root)
		}
	}

	if len(files) == 0 {
		report(1.0, "insert", "")
		return nil
	}
	report(0.5, "insert", fmt.Sprintf("found %s files", humanize.Comma(int64(len(files)))))

	for i, sf := range files {
		if ctx.Err() != nil {
			return engineerr.Wrap(engineerr.KindCancelled, engineerr.OpImport, ctx.Err())
		}
		fp, err := fingerprint.Of(sf.Path)
		if err != nil {
			continue
		}
		title := sf.Title
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(sf.Path), filepath.Ext(sf.Path))
		}
		track := catalog.Track{
			Path: sf.Path, Title: title, Artist: sf.Artist,
			DurationSecs: sf.DurationSecs, ContentFingerprint: fp,
		}
		if sf.Album != "" {
			track.Album = &sf.Album
		}
		if sf.Genre != "" {
			track.Genre = &sf.Genre
		}
		if sf.Year != 0 {
			y := int64(sf.Year)
			track.Year = &y
		}
		if sf.Bitrate != 0 {
			b := int64(sf.Bitrate)
			track.Bitrate = &b
		}
		if _, err := e.catalog.InsertTrack(ctx, track); err != nil && !engineerr.Is(err, engineerr.KindConflict) {
			return err
		}
		report(0.5+0.5*float64(i+1)/float64(len(files)), "insert", sf.Path)
	}
	return nil
}

// ConsolidateLibrary submits a reconciliation job between the catalog
// and roots, per §4.7/§6.1.
func (e *Engine) ConsolidateLibrary(roots []string) string {
	return e.runner.Submit(jobs.KindConsolidate, func(ctx context.Context, report func(float64, string, string)) error {
		_, err := e.consolidator.Run(ctx, roots, func(phase string, progress float64) {
			report(progress, phase, "")
		})
		return err
	})
}

// ResetLibrary wipes every track, playlist, and analysis artifact,
// returning the catalog to an empty state. It is destructive and
// synchronous: callers are expected to confirm with the user before
// invoking it, per §6.1.
func (e *Engine) ResetLibrary(ctx context.Context) (catalog.ResetResult, error) {
	res, err := e.catalog.ResetAll(ctx)
	if err != nil {
		return catalog.ResetResult{}, err
	}
	if err := e.store.Vacuum(ctx); err != nil {
		return catalog.ResetResult{}, err
	}
	return res, nil
}

// ConvertTrackToMP3 submits a single-track transcode job.
func (e *Engine) ConvertTrackToMP3(trackID, srcPath, destPath string, bitrateKbps int) string {
	return e.runner.Submit(jobs.KindTranscode, func(ctx context.Context, report func(float64, string, string)) error {
		return e.transcoder.Convert(ctx, srcPath, destPath, bitrateKbps, func(p float64) {
			report(p, "convert", trackID)
		})
	})
}

// BatchConvertToMP3 submits one transcode job covering every (src,
// dest) pair in order, reporting overall progress across the batch.
func (e *Engine) BatchConvertToMP3(pairs []ConvertPair, bitrateKbps int) string {
	return e.runner.Submit(jobs.KindTranscode, func(ctx context.Context, report func(float64, string, string)) error {
		if len(pairs) == 0 {
			report(1.0, "convert", "")
			return nil
		}
		for i, p := range pairs {
			base := float64(i) / float64(len(pairs))
			step := 1.0 / float64(len(pairs))
			err := e.transcoder.Convert(ctx, p.SrcPath, p.DestPath, bitrateKbps, func(sub float64) {
				report(base+step*sub, "convert", p.SrcPath)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ConvertPair names one file to re-encode as part of a batch conversion.
type ConvertPair struct {
	SrcPath  string
	DestPath string
}

// CheckFFmpegInstalled reports whether the configured transcoder backend
// is available on this machine, per §6.3.
func (e *Engine) CheckFFmpegInstalled(ctx context.Context) bool {
	return e.transcoder.Available(ctx)
}
