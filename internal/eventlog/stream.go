package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/babelhq/babel/internal/debug"
	"github.com/babelhq/babel/internal/types"
)

// errHalt aborts a journal read from inside a line callback.
var errHalt = errors.New("halt journal read")

// readJournal hands every non-blank line to fn along with its 1-based line
// number and whether the line was newline-terminated. A missing journal is an
// empty journal. Lines can be large (an event with a long payload), so the
// reader is unbounded rather than scanner-capped.
func readJournal(path string, fn func(line []byte, lineNo int, complete bool) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("eventlog: open journal: %w", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	lineNo := 0
	for {
		line, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("eventlog: read journal: %w", err)
		}
		complete := len(line) > 0 && line[len(line)-1] == '\n'

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			lineNo++
			if cbErr := fn(trimmed, lineNo, complete); cbErr != nil {
				if errors.Is(cbErr, errHalt) {
					return nil
				}
				return cbErr
			}
		}
		if err == io.EOF {
			return nil
		}
	}
}

// conflictMarker spots unresolved git merge markers. They mean someone merged
// the shared journal by hand and stopped halfway.
func conflictMarker(line []byte) bool {
	return bytes.HasPrefix(line, []byte("<<<<<<< ")) ||
		bytes.Equal(line, []byte("=======")) ||
		bytes.HasPrefix(line, []byte(">>>>>>> "))
}

// Stream calls fn for every event in one journal, in append order. Duplicate
// ids are collapsed to their first occurrence. A torn trailing line is EOF.
// Corrupt complete lines are skipped, not fatal: they stay in the journal,
// Verify and Sync report them, and the projector surfaces each as a tension.
// Unresolved merge-conflict markers do fail with ErrJournalCorruption since
// nothing after them can be trusted. Return ErrStop from fn to end the
// stream early.
//
// Streaming takes no lock: an append racing with a read either lands its
// whole record before the reader gets there or looks like a torn tail.
func (l *Log) Stream(scope types.Scope, fn func(*types.Event) error) error {
	if !scope.IsValid() {
		return fmt.Errorf("eventlog: %w: %q", ErrScopeUnknown, scope)
	}

	seen := make(map[string]bool)
	err := readJournal(l.JournalPath(scope), func(line []byte, lineNo int, complete bool) error {
		if conflictMarker(line) {
			return fmt.Errorf("eventlog: %w: %s journal line %d holds an unresolved merge conflict, resolve it and run 'babel sync'",
				ErrJournalCorruption, scope, lineNo)
		}
		var ev types.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			if !complete {
				// Interrupted append. Everything before it is intact.
				return errHalt
			}
			debug.Logf("eventlog: skipping corrupt %s journal line %d: %v\n", scope, lineNo, err)
			return nil
		}
		if seen[ev.ID] {
			return nil
		}
		seen[ev.ID] = true
		if err := fn(&ev); err != nil {
			if errors.Is(err, ErrStop) {
				return errHalt
			}
			return err
		}
		return nil
	})
	return err
}

// Events loads every event from one journal in append order.
func (l *Log) Events(scope types.Scope) ([]*types.Event, error) {
	var out []*types.Event
	err := l.Stream(scope, func(ev *types.Event) error {
		out = append(out, ev)
		return nil
	})
	return out, err
}

// Merged returns both journals interleaved in the canonical replay order:
// append order within each scope, merged across scopes by (created_at, id).
// Ids are unique, so the order is total and every rebuild sees the same
// sequence. Cross-scope duplicate ids keep their shared occurrence.
func (l *Log) Merged() ([]*types.Event, error) {
	shared, err := l.Events(types.ScopeShared)
	if err != nil {
		return nil, err
	}
	local, err := l.Events(types.ScopeLocal)
	if err != nil {
		return nil, err
	}

	inShared := make(map[string]bool, len(shared))
	for _, ev := range shared {
		inShared[ev.ID] = true
	}

	out := make([]*types.Event, 0, len(shared)+len(local))
	i, j := 0, 0
	for i < len(shared) && j < len(local) {
		if inShared[local[j].ID] {
			j++
			continue
		}
		if eventBefore(shared[i], local[j]) {
			out = append(out, shared[i])
			i++
		} else {
			out = append(out, local[j])
			j++
		}
	}
	for ; i < len(shared); i++ {
		out = append(out, shared[i])
	}
	for ; j < len(local); j++ {
		if !inShared[local[j].ID] {
			out = append(out, local[j])
		}
	}
	return out, nil
}

// Replay feeds the canonical merged sequence to fn, the projector's input.
func (l *Log) Replay(fn func(*types.Event) error) error {
	events, err := l.Merged()
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := fn(ev); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// eventBefore orders events by (created_at, id). Timestamps are second
// precision, so same-second events fall back to the id, which is unique.
func eventBefore(a, b *types.Event) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
