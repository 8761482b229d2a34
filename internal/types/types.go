// Package types defines the core data structures of the babel reasoning log:
// events, the nodes and edges projected from them, refs, and code symbols.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Scope separates the two event streams: shared (team, tracked in VCS) and
// local (per-user, never tracked). Every event carries its scope and keeps it
// through projection.
type Scope string

const (
	ScopeShared Scope = "shared"
	ScopeLocal  Scope = "local"
)

// IsValid reports whether the scope is one of the two known streams.
func (s Scope) IsValid() bool {
	return s == ScopeShared || s == ScopeLocal
}

// EventType discriminates event payloads. Unknown types are preserved verbatim
// so old binaries can replay journals written by newer ones.
type EventType string

const (
	EventProjectCreated    EventType = "PROJECT_CREATED"
	EventPurposeDeclared   EventType = "PURPOSE_DECLARED"
	EventStructureProposed EventType = "STRUCTURE_PROPOSED"
	EventArtifactConfirmed EventType = "ARTIFACT_CONFIRMED"
	EventQuestionRaised    EventType = "QUESTION_RAISED"
	EventQuestionResolved  EventType = "QUESTION_RESOLVED"
	EventChallengeRaised   EventType = "CHALLENGE_RAISED"
	EventEndorsed          EventType = "ENDORSED"
	EventEvidenceAttached  EventType = "EVIDENCE_ATTACHED"
	EventDeprecated        EventType = "DEPRECATED"
	EventLinkCreated       EventType = "LINK_CREATED"
	EventCommitCaptured    EventType = "COMMIT_CAPTURED"
	EventMemoCaptured      EventType = "MEMO_CAPTURED"
	EventTopicDeclared     EventType = "TOPIC_DECLARED"
)

// knownEventTypes is the set an up-to-date binary can decode into a typed
// payload. Events outside this set still append, stream, and replay.
var knownEventTypes = map[EventType]bool{
	EventProjectCreated:    true,
	EventPurposeDeclared:   true,
	EventStructureProposed: true,
	EventArtifactConfirmed: true,
	EventQuestionRaised:    true,
	EventQuestionResolved:  true,
	EventChallengeRaised:   true,
	EventEndorsed:          true,
	EventEvidenceAttached:  true,
	EventDeprecated:        true,
	EventLinkCreated:       true,
	EventCommitCaptured:    true,
	EventMemoCaptured:      true,
	EventTopicDeclared:     true,
}

// IsKnown reports whether this binary has a typed payload for the event type.
func (t EventType) IsKnown() bool {
	return knownEventTypes[t]
}

// Event is one immutable record in a journal. Once appended, the tuple
// (ID, Type, Data, CreatedAt, Scope, ParentIDs) is never modified.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Scope     Scope           `json:"scope"`
	ParentIDs []string        `json:"parent_ids,omitempty"`
}

// Validate checks the fields every appended event must carry. The ID may be
// empty: the log assigns one at append time.
func (e *Event) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if !e.Scope.IsValid() {
		return fmt.Errorf("unknown scope %q (want %q or %q)", e.Scope, ScopeShared, ScopeLocal)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		return fmt.Errorf("event data is not valid JSON")
	}
	return nil
}

// Clone returns a deep copy. Streams hand out clones so callers cannot reach
// back into log internals.
func (e *Event) Clone() *Event {
	out := *e
	if e.Data != nil {
		out.Data = append(json.RawMessage(nil), e.Data...)
	}
	if e.ParentIDs != nil {
		out.ParentIDs = append([]string(nil), e.ParentIDs...)
	}
	return &out
}

// Ref is one entry in the reverse token index: a normalized token pointing at
// an event with a match weight.
type Ref struct {
	Token   string  `json:"token"`
	EventID string  `json:"event_id"`
	Weight  float64 `json:"weight"`
}
