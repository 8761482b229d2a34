package types

import (
	"encoding/json"
	"fmt"
)

// Event payloads. Each known event type has one concrete shape; DecodePayload
// selects it by the event's type discriminator. Unknown types decode to
// UnknownPayload and are carried verbatim.

// ProjectCreatedPayload seeds a project node.
type ProjectCreatedPayload struct {
	Name string `json:"name"`
	Need string `json:"need,omitempty"`
}

// PurposeDeclaredPayload creates or replaces the active purpose.
type PurposeDeclaredPayload struct {
	What string `json:"what"`
	Why  string `json:"why,omitempty"`
}

// StructureProposedPayload is an extractor (or human) proposal awaiting
// confirmation. Proposals project to pending proposal nodes, not artifacts.
type StructureProposedPayload struct {
	ArtifactType string  `json:"artifact_type"`
	Summary      string  `json:"summary"`
	What         string  `json:"what,omitempty"`
	Why          string  `json:"why,omitempty"`
	Domain       string  `json:"domain,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	Rationale    string  `json:"rationale,omitempty"`
	SourceID     string  `json:"source_id,omitempty"`
}

// ArtifactConfirmedPayload promotes a proposal into an artifact node. When
// ProposalID is empty the confirmation stands alone (direct capture).
type ArtifactConfirmedPayload struct {
	ProposalID   string `json:"proposal_id,omitempty"`
	ArtifactType string `json:"artifact_type"`
	Summary      string `json:"summary"`
	What         string `json:"what,omitempty"`
	Why          string `json:"why,omitempty"`
	Domain       string `json:"domain,omitempty"`
	PurposeID    string `json:"purpose_id,omitempty"`
}

// QuestionRaisedPayload opens a question, optionally anchored to a node.
type QuestionRaisedPayload struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
	TargetID string `json:"target_id,omitempty"`
}

// QuestionResolvedPayload closes a question.
type QuestionResolvedPayload struct {
	QuestionID string `json:"question_id"`
	Resolution string `json:"resolution,omitempty"`
}

// ChallengeRaisedPayload records a tension against an existing node.
type ChallengeRaisedPayload struct {
	TargetID  string `json:"target_id"`
	Challenge string `json:"challenge"`
	Severity  string `json:"severity,omitempty"`
}

// EndorsedPayload marks consensus on an artifact.
type EndorsedPayload struct {
	TargetID string `json:"target_id"`
	Comment  string `json:"comment,omitempty"`
}

// EvidenceAttachedPayload marks supporting evidence on an artifact.
type EvidenceAttachedPayload struct {
	TargetID string `json:"target_id"`
	Evidence string `json:"evidence"`
	Source   string `json:"source,omitempty"`
}

// DeprecatedPayload transitions a node's status. History is untouched.
type DeprecatedPayload struct {
	TargetID     string `json:"target_id"`
	Reason       string `json:"reason,omitempty"`
	SupersededBy string `json:"superseded_by,omitempty"`
}

// LinkCreatedPayload asserts an edge. Idempotent under replay.
type LinkCreatedPayload struct {
	SourceID string   `json:"source_id"`
	TargetID string   `json:"target_id"`
	Relation Relation `json:"relation"`
}

// CommitCapturedPayload records a VCS commit and the artifacts it touches.
type CommitCapturedPayload struct {
	Hash         string   `json:"hash"`
	Message      string   `json:"message,omitempty"`
	Author       string   `json:"author,omitempty"`
	ArtifactIDs  []string `json:"artifact_ids,omitempty"`
	FilesChanged int      `json:"files_changed,omitempty"`
}

// MemoCapturedPayload is a lightweight personal note, usually local scope.
type MemoCapturedPayload struct {
	Text   string   `json:"text"`
	Topics []string `json:"topics,omitempty"`
}

// TopicDeclaredPayload names a topic node other nodes can apply to.
type TopicDeclaredPayload struct {
	Topic       string `json:"topic"`
	Description string `json:"description,omitempty"`
}

// UnknownPayload preserves the payload of an event type this binary does not
// understand. It round-trips byte-for-byte.
type UnknownPayload struct {
	Type EventType
	Raw  json.RawMessage
}

// DecodePayload unmarshals the event's data into its typed payload. The
// decoder is forgiving: an unknown event type is not an error, and missing
// optional fields decode to zero values. A known type with malformed JSON is
// an error - that event cannot have been written by a babel append.
func DecodePayload(ev *Event) (any, error) {
	raw := ev.Data
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	decode := func(dst any) (any, error) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("decode %s payload for %s: %w", ev.Type, ev.ID, err)
		}
		return dst, nil
	}
	switch ev.Type {
	case EventProjectCreated:
		return decode(&ProjectCreatedPayload{})
	case EventPurposeDeclared:
		return decode(&PurposeDeclaredPayload{})
	case EventStructureProposed:
		return decode(&StructureProposedPayload{})
	case EventArtifactConfirmed:
		return decode(&ArtifactConfirmedPayload{})
	case EventQuestionRaised:
		return decode(&QuestionRaisedPayload{})
	case EventQuestionResolved:
		return decode(&QuestionResolvedPayload{})
	case EventChallengeRaised:
		return decode(&ChallengeRaisedPayload{})
	case EventEndorsed:
		return decode(&EndorsedPayload{})
	case EventEvidenceAttached:
		return decode(&EvidenceAttachedPayload{})
	case EventDeprecated:
		return decode(&DeprecatedPayload{})
	case EventLinkCreated:
		return decode(&LinkCreatedPayload{})
	case EventCommitCaptured:
		return decode(&CommitCapturedPayload{})
	case EventMemoCaptured:
		return decode(&MemoCapturedPayload{})
	case EventTopicDeclared:
		return decode(&TopicDeclaredPayload{})
	default:
		return &UnknownPayload{Type: ev.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

// MustMarshal encodes a payload, panicking on the impossible case of a
// non-marshalable static struct. Construction helpers use it so callers write
// one line per event.
func MustMarshal(payload any) json.RawMessage {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("types: marshal %T: %v", payload, err))
	}
	return b
}
