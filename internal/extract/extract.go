// Package extract turns free text into structure proposals. Extractors only
// propose: a Proposal becomes real solely through a STRUCTURE_PROPOSED event
// that a human later confirms or rejects. Nothing in this package writes to
// the event log.
//
// Two implementations cover on- and offline work. HeuristicExtractor is pure
// regex over sentence cues and always available. LLMExtractor prompts a
// configured provider and parses its JSON; when the provider is down, inputs
// wait in a persistent Queue and drain on the next run.
package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/babelhq/babel/internal/types"
)

// Proposal is a candidate artifact. Content is the summary a confirmed node
// would carry; Confidence is the extractor's own estimate in [0,1].
type Proposal struct {
	SourceID     string  `json:"source_id"`
	ArtifactType string  `json:"artifact_type"`
	Content      string  `json:"content"`
	Confidence   float64 `json:"confidence"`
	Rationale    string  `json:"rationale,omitempty"`
}

// Payload converts the proposal to the event payload it is allowed to become.
func (p Proposal) Payload() *types.StructureProposedPayload {
	return &types.StructureProposedPayload{
		ArtifactType: p.ArtifactType,
		Summary:      p.Content,
		Confidence:   p.Confidence,
		Rationale:    p.Rationale,
		SourceID:     p.SourceID,
	}
}

// Extractor produces proposals from text. The artifactContext argument carries
// a short rendering of existing artifacts so extractors can avoid re-proposing
// known structure.
type Extractor interface {
	Extract(ctx context.Context, text, sourceID, artifactContext string) ([]Proposal, error)
	Name() string
}

// clampConfidence forces extractor-reported confidence into [0,1].
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// normalizeContent trims and bounds a proposal summary. Long extractions keep
// their head; the full text is still reachable through the source event.
func normalizeContent(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const max = 240
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
