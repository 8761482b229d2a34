package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/babelhq/babel/internal/types"
)

// SyncReport summarizes a re-read of the journals after an external change,
// typically a git pull or merge touching the shared journal.
type SyncReport struct {
	SharedEvents int
	LocalEvents  int

	// NewEvents are ids that were not indexed before this sync, sorted.
	NewEvents []string

	// Duplicates counts identical records seen more than once. A merge that
	// doubled some lines is harmless; first occurrence wins.
	Duplicates int

	// Conflicts are duplicate ids with diverging payloads. The losers were
	// quarantined; the projector turns each into a tension node.
	Conflicts   []Conflict
	Quarantined int

	// CorruptLines maps scope to line numbers that parse as neither an event
	// nor a torn tail. TornTails counts journals ending mid-append.
	CorruptLines map[types.Scope][]int
	TornTails    int
}

// Clean reports whether the sync found nothing to worry about.
func (r *SyncReport) Clean() bool {
	return len(r.Conflicts) == 0 && len(r.CorruptLines) == 0 && r.TornTails == 0
}

// Sync re-reads both journals from disk, refreshes the id index, and
// quarantines any conflicting duplicates. It never rewrites a journal; the
// first occurrence of an id stays authoritative and losing records are copied
// to the quarantine journal. Unresolved merge-conflict markers abort the sync
// because no ordering of half-merged lines is trustworthy.
func (l *Log) Sync(ctx context.Context) (*SyncReport, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, ErrClosed
	}
	before := make(map[string]bool, len(l.ids))
	for id := range l.ids {
		before[id] = true
	}
	l.mu.RUnlock()

	ids := make(map[string]string)
	first := make(map[string]*types.Event)
	counts := make(map[types.Scope]int)
	var conflicts []Conflict

	report := &SyncReport{CorruptLines: make(map[types.Scope][]int)}

	for _, scope := range []types.Scope{types.ScopeShared, types.ScopeLocal} {
		ss, cf, err := scanScope(l.JournalPath(scope), scope, ids, first)
		if err != nil {
			return nil, err
		}
		if len(ss.markers) > 0 {
			return nil, fmt.Errorf("eventlog: %w: %s journal has unresolved merge conflict markers at lines %v, resolve them and sync again",
				ErrJournalCorruption, scope, ss.markers)
		}
		counts[scope] = ss.events
		conflicts = append(conflicts, cf...)
		report.Duplicates += ss.dupes
		if len(ss.corrupt) > 0 {
			report.CorruptLines[scope] = ss.corrupt
		}
		if ss.torn {
			report.TornTails++
		}
	}

	for id := range ids {
		if !before[id] {
			report.NewEvents = append(report.NewEvents, id)
		}
	}
	sort.Strings(report.NewEvents)

	if len(conflicts) > 0 {
		n, err := l.quarantine(ctx, conflicts)
		if err != nil {
			return nil, err
		}
		report.Quarantined = n
	}

	l.mu.Lock()
	l.ids = ids
	l.counts = counts
	l.conflicts = conflicts
	l.corrupt = report.CorruptLines
	l.mu.Unlock()

	report.SharedEvents = counts[types.ScopeShared]
	report.LocalEvents = counts[types.ScopeLocal]
	report.Conflicts = conflicts
	return report, nil
}

// QuarantinePath returns the journal that holds conflicting records pulled
// aside by sync.
func (l *Log) QuarantinePath() string {
	return filepath.Join(l.dir, "quarantine", journalName)
}

// quarantineRecord wraps a losing event with the reason it was pulled aside,
// for the audit trail.
type quarantineRecord struct {
	Event         *types.Event `json:"event"`
	Reason        string       `json:"reason"`
	QuarantinedAt time.Time    `json:"quarantined_at"`
}

// quarantine appends each conflict's losing record to the quarantine journal,
// skipping records already there so repeated syncs stay idempotent.
func (l *Log) quarantine(ctx context.Context, conflicts []Conflict) (int, error) {
	path := l.QuarantinePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("eventlog: create quarantine dir: %w", err)
	}

	already := make(map[string]bool)
	err := readJournal(path, func(line []byte, lineNo int, complete bool) error {
		var rec quarantineRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.Event == nil {
			return nil
		}
		already[rec.Event.ID+"\x00"+fingerprint(rec.Event)] = true
		return nil
	})
	if err != nil {
		return 0, err
	}

	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return 0, fmt.Errorf("eventlog: lock quarantine journal: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("eventlog: quarantine journal is locked by another process")
	}
	defer func() { _ = fl.Unlock() }()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("eventlog: open quarantine journal: %w", err)
	}
	defer f.Close()

	written := 0
	for _, c := range conflicts {
		key := c.Loser.ID + "\x00" + fingerprint(c.Loser)
		if already[key] {
			continue
		}
		rec := quarantineRecord{
			Event:         c.Loser,
			Reason:        fmt.Sprintf("duplicate of %s with different payload (%s journal line %d)", c.ID, c.Scope, c.Line),
			QuarantinedAt: time.Now().UTC().Truncate(time.Second),
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return written, fmt.Errorf("eventlog: marshal quarantine record: %w", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return written, fmt.Errorf("eventlog: append quarantine record: %w", err)
		}
		already[key] = true
		written++
	}
	return written, nil
}

// VerifyResult is the integrity picture of a single journal.
type VerifyResult struct {
	Scope        types.Scope
	Events       int
	Duplicates   int
	Conflicts    []Conflict
	CorruptLines []int
	MarkerLines  []int
	TornTail     bool
}

// OK reports whether the journal is healthy.
func (v *VerifyResult) OK() bool {
	return len(v.Conflicts) == 0 && len(v.CorruptLines) == 0 &&
		len(v.MarkerLines) == 0 && !v.TornTail
}

// Verify scans one journal without touching the log's index or writing
// anything. It backs 'babel log verify'.
func (l *Log) Verify(scope types.Scope) (*VerifyResult, error) {
	if !scope.IsValid() {
		return nil, fmt.Errorf("eventlog: %w: %q", ErrScopeUnknown, scope)
	}
	ids := make(map[string]string)
	first := make(map[string]*types.Event)
	ss, conflicts, err := scanScope(l.JournalPath(scope), scope, ids, first)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Scope:        scope,
		Events:       ss.events,
		Duplicates:   ss.dupes,
		Conflicts:    conflicts,
		CorruptLines: ss.corrupt,
		MarkerLines:  ss.markers,
		TornTail:     ss.torn,
	}, nil
}
