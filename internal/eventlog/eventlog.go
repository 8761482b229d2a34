// Package eventlog owns the two append-only journals under .babel/: the
// shared journal (tracked in version control, one per team) and the local
// journal (per user, never committed). Append is the only write path. Records
// are never rewritten in place, which is what makes the projected graph
// rebuildable from scratch at any time.
package eventlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/types"
)

const journalName = "events.jsonl"

// lockRetry is the poll interval while waiting on another process's
// advisory lock.
const lockRetry = 10 * time.Millisecond

// Log is a dual-scope append-only event journal. One Log instance per
// project; concurrent use by multiple goroutines is safe, and the advisory
// file lock keeps concurrent processes from interleaving appends.
type Log struct {
	dir   string // the .babel directory
	fsync bool

	mu        sync.RWMutex
	ids       map[string]string // event id -> record fingerprint
	counts    map[types.Scope]int
	conflicts []Conflict
	corrupt   map[types.Scope][]int
	closed    bool
}

// Conflict is a duplicated event id whose second occurrence carries a
// different payload. The first occurrence stays authoritative; the loser is
// quarantined and surfaced as a tension, never silently dropped or rewritten.
type Conflict struct {
	ID    string
	Scope types.Scope
	Line  int
	Kept  *types.Event
	Loser *types.Event
}

// Option configures a Log at open time.
type Option func(*Log)

// WithFsync forces an fsync after every append. Slower, but the journal
// survives power loss with at most a torn trailing line.
func WithFsync(on bool) Option {
	return func(l *Log) { l.fsync = on }
}

// Open loads the journals under babelDir, creating the scope directories if
// needed. Conflicting duplicate ids found on disk (a hallmark of a bad merge)
// are recorded and reachable via Conflicts; they do not fail the open.
func Open(babelDir string, opts ...Option) (*Log, error) {
	l := &Log{
		dir:    babelDir,
		ids:    make(map[string]string),
		counts: make(map[types.Scope]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, scope := range []types.Scope{types.ScopeShared, types.ScopeLocal} {
		if err := os.MkdirAll(filepath.Dir(l.JournalPath(scope)), 0o755); err != nil {
			return nil, fmt.Errorf("eventlog: create %s journal dir: %w", scope, err)
		}
	}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// JournalPath returns the on-disk journal for a scope.
func (l *Log) JournalPath(scope types.Scope) string {
	return filepath.Join(l.dir, string(scope), journalName)
}

// Dir returns the .babel directory this log lives in.
func (l *Log) Dir() string { return l.dir }

// Append journals an event and returns its id. The id is assigned here when
// the event arrives without one. Appending a record identical to one already
// journaled is an idempotent no-op; the same id with a different payload is
// refused with ErrDuplicateEventID.
//
// CreatedAt is normalized to UTC at second precision, and control characters
// are scrubbed from every string in the payload before the id is computed, so
// the id always matches the bytes on disk.
func (l *Log) Append(ctx context.Context, ev *types.Event) (string, error) {
	if ev == nil {
		return "", fmt.Errorf("eventlog: nil event")
	}
	if !ev.Scope.IsValid() {
		return "", fmt.Errorf("eventlog: %w: %q", ErrScopeUnknown, ev.Scope)
	}

	e := ev.Clone()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Second)
	if len(e.Data) > 0 {
		clean, changed, err := sanitizeRaw(e.Data)
		if err != nil {
			return "", fmt.Errorf("eventlog: event data: %w", err)
		}
		if changed {
			e.Data = clean
		}
	}
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("eventlog: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", ErrClosed
	}

	fp := fingerprint(e)
	if e.ID == "" {
		// The nonce only matters when distinct records collide within the
		// same second; the loop almost always exits on the first pass.
		for nonce := 0; ; nonce++ {
			id := idgen.NewEventID(e.CreatedAt, string(e.Type), e.Data, nonce)
			prior, taken := l.ids[id]
			if !taken {
				e.ID = id
				break
			}
			if prior == fp {
				return id, nil
			}
		}
	} else {
		if prior, taken := l.ids[e.ID]; taken {
			if prior == fp {
				return e.ID, nil
			}
			return "", fmt.Errorf("eventlog: %w: %s", ErrDuplicateEventID, e.ID)
		}
	}

	line, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("eventlog: marshal event: %w", err)
	}
	if err := l.writeLine(ctx, e.Scope, line); err != nil {
		return "", err
	}

	l.ids[e.ID] = fp
	l.counts[e.Scope]++
	return e.ID, nil
}

// writeLine appends one record under the per-scope advisory lock. The record
// plus terminator goes down in a single write so concurrent readers never see
// half a line with a boundary in it.
func (l *Log) writeLine(ctx context.Context, scope types.Scope, line []byte) error {
	path := l.JournalPath(scope)

	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("eventlog: lock %s journal: %w", scope, err)
	}
	if !locked {
		return fmt.Errorf("eventlog: %s journal is locked by another process", scope)
	}
	defer func() { _ = fl.Unlock() }()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open %s journal: %w", scope, err)
	}
	defer f.Close()

	buf := make([]byte, 0, len(line)+2)
	if missingTerminator(f) {
		// A previous append was interrupted mid-record. Start a fresh line so
		// the torn fragment stays isolated instead of fusing with this record.
		buf = append(buf, '\n')
	}
	buf = append(buf, line...)
	buf = append(buf, '\n')

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("eventlog: append to %s journal: %w", scope, err)
	}
	if l.fsync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("eventlog: fsync %s journal: %w", scope, err)
		}
	}
	return nil
}

// missingTerminator reports whether a non-empty file does not end in a
// newline, meaning the last append never completed.
func missingTerminator(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil || fi.Size() == 0 {
		return false
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, fi.Size()-1); err != nil {
		return false
	}
	return last[0] != '\n'
}

// Exists reports whether an event id is present in either journal.
func (l *Log) Exists(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

// Count returns the number of distinct events journaled in a scope.
func (l *Log) Count(scope types.Scope) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counts[scope]
}

// Conflicts returns the duplicate-id conflicts found by the last full scan
// (Open or Sync). The slice is a copy.
func (l *Log) Conflicts() []Conflict {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Conflict, len(l.conflicts))
	copy(out, l.conflicts)
	return out
}

// CorruptLines returns the unparseable complete lines found by the last full
// scan, by scope. Each is surfaced as a tension when the graph rebuilds.
func (l *Log) CorruptLines() map[types.Scope][]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[types.Scope][]int, len(l.corrupt))
	for scope, lines := range l.corrupt {
		out[scope] = append([]int(nil), lines...)
	}
	return out
}

// Close marks the log closed. No file handles stay open between operations,
// so this only fences off further appends.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// reload rescans both journals and rebuilds the id index, counts and conflict
// list from what is on disk. Damage beyond conflicts (corrupt lines, torn
// tails) is tolerated here; Verify and Sync report it in detail. Caller must
// not hold l.mu.
func (l *Log) reload() error {
	ids := make(map[string]string)
	counts := make(map[types.Scope]int)
	corrupt := make(map[types.Scope][]int)
	var conflicts []Conflict

	// first spans both scopes: the same id surfacing in shared and local is
	// just as much a conflict as a duplicate within one journal.
	first := make(map[string]*types.Event)

	for _, scope := range []types.Scope{types.ScopeShared, types.ScopeLocal} {
		ss, cf, err := scanScope(l.JournalPath(scope), scope, ids, first)
		if err != nil {
			return err
		}
		counts[scope] = ss.events
		conflicts = append(conflicts, cf...)
		if len(ss.corrupt) > 0 {
			corrupt[scope] = ss.corrupt
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = ids
	l.counts = counts
	l.conflicts = conflicts
	l.corrupt = corrupt
	return nil
}

// fingerprint identifies a record's full content so a re-appended id can be
// classified as an idempotent duplicate or a conflicting payload.
func fingerprint(e *types.Event) string {
	h := sha256.New()
	io.WriteString(h, string(e.Type))
	h.Write([]byte{0})
	io.WriteString(h, e.CreatedAt.UTC().Format(time.RFC3339))
	h.Write([]byte{0})
	io.WriteString(h, string(e.Scope))
	h.Write([]byte{0})
	for _, p := range e.ParentIDs {
		io.WriteString(h, p)
		h.Write([]byte{0})
	}
	h.Write(e.Data)
	return hex.EncodeToString(h.Sum(nil)[:12])
}
