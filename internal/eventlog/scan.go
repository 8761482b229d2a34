package eventlog

import (
	"encoding/json"

	"github.com/babelhq/babel/internal/types"
)

// scopeScan is the raw integrity picture of one journal, end to end.
type scopeScan struct {
	scope   types.Scope
	events  int   // records indexed from this journal
	dupes   int   // identical records repeated (harmless, skipped)
	corrupt []int // complete lines that failed to parse
	markers []int // unresolved git merge-conflict marker lines
	torn    bool  // journal ends in an interrupted append
}

// scanScope reads one journal into the caller's id index. ids maps event id
// to fingerprint and first keeps each id's authoritative record; both may
// already hold entries from a previously scanned scope so cross-scope
// duplicates surface as conflicts. Only I/O failures return an error.
func scanScope(path string, scope types.Scope, ids map[string]string, first map[string]*types.Event) (scopeScan, []Conflict, error) {
	ss := scopeScan{scope: scope}
	var conflicts []Conflict

	err := readJournal(path, func(line []byte, lineNo int, complete bool) error {
		if conflictMarker(line) {
			ss.markers = append(ss.markers, lineNo)
			return nil
		}
		var ev types.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			if !complete {
				ss.torn = true
			} else {
				ss.corrupt = append(ss.corrupt, lineNo)
			}
			return nil
		}
		fp := fingerprint(&ev)
		prior, seen := ids[ev.ID]
		if !seen {
			ids[ev.ID] = fp
			first[ev.ID] = ev.Clone()
			ss.events++
			return nil
		}
		if prior == fp {
			ss.dupes++
			return nil
		}
		conflicts = append(conflicts, Conflict{
			ID:    ev.ID,
			Scope: scope,
			Line:  lineNo,
			Kept:  first[ev.ID],
			Loser: ev.Clone(),
		})
		return nil
	})
	return ss, conflicts, err
}
