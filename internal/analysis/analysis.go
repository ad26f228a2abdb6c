// Package analysis computes and persists the derived artifacts that
// hang off a track: beatgrid, cue points, loops, and Beatport-sourced
// tag corrections. Decoding is delegated to internal/decode; all
// persistence goes through internal/store transactions, never a second
// database connection, per §4.4.
package analysis

import (
	"github.com/jvegaf/symphony-engine/internal/catalog"
	"github.com/jvegaf/symphony-engine/internal/store"
	"github.com/jvegaf/symphony-engine/internal/tagservice"
)

// Analysis is the gateway onto beatgrid/cue/loop/tag-fix persistence.
// Beatgrid/cue/loop tables are owned directly through Store; tag-fix
// writes land on Track rows through Catalog, since "fixed" tags are a
// track attribute (§3), not a separate artifact table.
type Analysis struct {
	store   *store.Store
	catalog *catalog.Catalog
	search  tagservice.TagSearch

	minBPM, maxBPM float64
}

// BPMRange overrides the folded tempo range beatgrid estimation maps
// candidate intervals into. A zero value in either field falls back to
// the package default (60-200), per §4.4.
type BPMRange struct {
	Min, Max float64
}

// New returns an Analysis backed by st and cat, using search for batch
// tag-fix lookups.
func New(st *store.Store, cat *catalog.Catalog, search tagservice.TagSearch, bpmRange BPMRange) *Analysis {
	lo, hi := bpmRange.Min, bpmRange.Max
	if lo <= 0 {
		lo = minBPM
	}
	if hi <= 0 {
		hi = maxBPM
	}
	return &Analysis{store: st, catalog: cat, search: search, minBPM: lo, maxBPM: hi}
}
