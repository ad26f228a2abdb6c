// Package engineerr defines the typed error kinds the engine surfaces to
// its callers across Store, Catalog, Analysis, Waveform Cache, Job Runner,
// Consolidator, and the Command Surface.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so callers can branch on it without
// string matching.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindValidation          Kind = "validation"
	KindStoreUnavailable    Kind = "store_unavailable"
	KindCorrupt             Kind = "corrupt"
	KindDecode              Kind = "decode"
	KindIO                  Kind = "io"
	KindFormat              Kind = "format"
	KindCancelled           Kind = "cancelled"
	KindExternalUnavailable Kind = "external_unavailable"
	KindSchemaTooNew        Kind = "schema_too_new"
)

// Op names the operation that failed, grouped by domain component.
type Op string

const (
	OpStoreOpen       Op = "open store"
	OpStoreMigrate    Op = "apply migrations"
	OpStoreRead       Op = "read from store"
	OpStoreWrite      Op = "write to store"
	OpScanFile        Op = "scan file"
	OpScanWalk        Op = "walk directory"
	OpTrackInsert     Op = "insert track"
	OpTrackUpdate     Op = "update track metadata"
	OpTrackDelete     Op = "delete track"
	OpTrackList       Op = "list tracks"
	OpPlaylistCreate  Op = "create playlist"
	OpPlaylistRename  Op = "rename playlist"
	OpPlaylistDelete  Op = "delete playlist"
	OpPlaylistAdd     Op = "add tracks to playlist"
	OpPlaylistRemove  Op = "remove track from playlist"
	OpPlaylistReorder Op = "reorder playlist tracks"
	OpDecode          Op = "decode audio"
	OpBeatgrid        Op = "compute beatgrid"
	OpCuePoint        Op = "manage cue point"
	OpLoop            Op = "manage loop"
	OpTagFix          Op = "fix tags"
	OpWaveformGet     Op = "get waveform"
	OpWaveformCancel  Op = "cancel waveform"
	OpJobSubmit       Op = "submit job"
	OpJobCancel       Op = "cancel job"
	OpConsolidate     Op = "consolidate library"
	OpTagSearch       Op = "search tag service"
	OpImport          Op = "import library"
	OpReset           Op = "reset library"
	OpTranscode       Op = "transcode track"
)

// Error is the engine's typed error. It always carries a Kind and the Op
// that failed; Err is the underlying cause, if any.
type Error struct {
	Kind  Kind
	Op    Op
	Field string // set for Validation errors
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %q): %v", e.Op, e.Kind, e.Field, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with no underlying cause.
func New(kind Kind, op Op) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap constructs an *Error wrapping err under kind/op.
func Wrap(kind Kind, op Op, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid constructs a Validation error naming the offending field.
func Invalid(op Op, field string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Err: err}
}

// KindOf extracts the Kind from err, walking the wrap chain. Returns ""
// if neither err nor anything in its chain is an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's Kind (anywhere in its wrap chain) equals kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
