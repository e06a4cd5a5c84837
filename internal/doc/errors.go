package doc

import "errors"

// ErrCausality is returned when a command's dependencies (an Insert's
// after/before anchors, or a Mark's endpoints) are not yet present in the
// snapshot being integrated against. Callers are expected to deliver each
// site's commands in FIFO order; a violation of that contract surfaces
// here rather than being silently buffered, so callers (session.Hub,
// relay) can decide whether to requeue the batch.
var ErrCausality = errors.New("doc: causality violation: anchor not present")

// ErrSentinelWrite is returned when a command attempts to create or
// overwrite a reserved identifier (site 0, or Begin/End themselves).
var ErrSentinelWrite = errors.New("doc: illegal write to sentinel identifier")

// ErrMalformedCommand is returned by wire decoding for a command with an
// unknown kind or missing required fields. It never reaches Integrate.
var ErrMalformedCommand = errors.New("doc: malformed command")
