package eventlog

import "errors"

var (
	// ErrScopeUnknown means the event names a scope that is not shared or local.
	ErrScopeUnknown = errors.New("unknown scope")

	// ErrDuplicateEventID means an id was appended twice with different
	// payloads. Identical re-appends are idempotent and do not error.
	ErrDuplicateEventID = errors.New("duplicate event id with different payload")

	// ErrJournalCorruption means a complete journal line failed to parse.
	// A torn trailing line (interrupted append) is treated as EOF instead.
	ErrJournalCorruption = errors.New("journal corruption")

	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("event log is closed")

	// ErrStop halts a Stream early from inside the callback. Stream swallows
	// it and returns nil, like fs.SkipAll for directory walks.
	ErrStop = errors.New("stop streaming")
)
