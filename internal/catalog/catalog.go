// Package catalog implements the domain CRUD operations over tracks,
// playlists, and playlist membership described for the library engine:
// uniqueness and range invariants, cascade deletes, and dense
// playlist-position maintenance. It is built entirely on top of
// internal/store's read/write gateway and never opens its own
// connection.
package catalog

import (
	"github.com/jvegaf/symphony-engine/internal/store"
)

// Catalog is the domain gateway onto the track/playlist tables. It
// holds no state of its own beyond the Store handle, matching the
// teacher's thin-wrapper Library/Playlists split.
type Catalog struct {
	store *store.Store
}

// New returns a Catalog backed by st.
func New(st *store.Store) *Catalog {
	return &Catalog{store: st}
}
