// Command enginecli wires every engine component together, submits an
// import job over the configured library sources (if any), logs the
// catalog's track count, and then keeps running, logging every Event Bus
// event, until the process is killed. It reads no commands from stdin.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jvegaf/symphony-engine/internal/analysis"
	"github.com/jvegaf/symphony-engine/internal/catalog"
	"github.com/jvegaf/symphony-engine/internal/command"
	"github.com/jvegaf/symphony-engine/internal/config"
	"github.com/jvegaf/symphony-engine/internal/consolidate"
	"github.com/jvegaf/symphony-engine/internal/jobs"
	"github.com/jvegaf/symphony-engine/internal/store"
	"github.com/jvegaf/symphony-engine/internal/tagservice"
	"github.com/jvegaf/symphony-engine/internal/transcode"
	"github.com/jvegaf/symphony-engine/internal/waveform"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("symphony-engine: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	cat := catalog.New(st)
	search := tagservice.NewClient(cfg.TagSearch.BaseURL, cfg.TagSearch.APIKey)
	ana := analysis.New(st, cat, search, analysis.BPMRange{Min: cfg.Analysis.MinBPM, Max: cfg.Analysis.MaxBPM})
	wf := waveform.New(st)
	cons := consolidate.New(st)
	trans := transcode.NewFFmpeg(cfg.Transcode.FFmpegBinary)

	concurrency := map[jobs.Kind]int{
		jobs.KindImport:      cfg.Jobs.ImportWorkers,
		jobs.KindAnalyze:     cfg.Jobs.AnalyzeWorkers,
		jobs.KindWaveform:    cfg.Jobs.WaveformWorkers,
		jobs.KindConsolidate: cfg.Jobs.ConsolidateWorkers,
		jobs.KindTranscode:   cfg.Jobs.TranscodeWorkers,
	}

	engine := command.New(st, cat, ana, wf, cons, trans, concurrency)
	defer engine.Close()

	go logEvents(engine)

	ctx := context.Background()
	if len(cfg.LibrarySources) > 0 {
		jobID := engine.ImportLibrary(cfg.LibrarySources)
		log.Printf("submitted initial import job %s over %s", jobID, strings.Join(cfg.LibrarySources, ", "))
	}

	tracks, err := engine.GetAllTracks(ctx, catalog.TrackFilter{}, catalog.SortTitle)
	if err != nil {
		return fmt.Errorf("list tracks: %w", err)
	}
	log.Printf("catalog ready: %d tracks", len(tracks))

	<-make(chan struct{}) // the engine runs until the host process kills it
	return nil
}

func logEvents(engine *command.Engine) {
	for ev := range engine.Events() {
		log.Printf("event %s job=%s track=%s", ev.Topic, ev.JobID, ev.TrackID)
	}
}
