package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/babelhq/babel/internal/debug"
	"github.com/babelhq/babel/internal/llm"
)

// ErrProviderUnavailable signals that the extractor's provider cannot serve
// right now. Callers fall back to the heuristic extractor and leave the
// input on the queue.
var ErrProviderUnavailable = errors.New("llm provider unavailable")

const extractSystem = `You extract reasoning structure from engineering notes.
From the text you are given, identify decisions (a choice was made),
constraints (a rule that limits choices), principles (a standing preference),
requirements (something the system must provide), and open questions.

Output ONLY a JSON array. Each element has exactly these fields:
  "type"       one of: decision, constraint, principle, requirement, question
  "content"    one sentence restating the item, under 200 characters
  "confidence" number between 0 and 1
  "rationale"  short quote or cue from the text that supports it

Do not propose items already present in the KNOWN ARTIFACTS section.
Do not wrap the array in an object. Do not add commentary.`

// LLMExtractor prompts a provider and parses its JSON reply into proposals.
type LLMExtractor struct {
	provider  llm.Provider
	maxTokens int
}

// NewLLMExtractor wraps a provider.
func NewLLMExtractor(provider llm.Provider) *LLMExtractor {
	return &LLMExtractor{provider: provider, maxTokens: 2048}
}

// Name implements Extractor.
func (e *LLMExtractor) Name() string { return "llm:" + e.provider.Name() }

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text, sourceID, artifactContext string) ([]Proposal, error) {
	if !e.provider.IsAvailable(ctx) {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, e.provider.Name())
	}

	var user strings.Builder
	if artifactContext != "" {
		user.WriteString("KNOWN ARTIFACTS:\n")
		user.WriteString(artifactContext)
		user.WriteString("\n\n")
	}
	user.WriteString("TEXT:\n")
	user.WriteString(text)

	raw, _, _, err := e.provider.Complete(ctx, extractSystem, user.String(), e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return parseProposals(raw, sourceID)
}

// wireProposal is the JSON shape the prompt asks for.
type wireProposal struct {
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

var allowedTypes = map[string]bool{
	"decision":    true,
	"constraint":  true,
	"principle":   true,
	"requirement": true,
	"question":    true,
}

// parseProposals is tolerant: markdown fences are stripped, an object root
// with a "proposals" key is accepted, malformed elements are skipped.
func parseProposals(raw, sourceID string) ([]Proposal, error) {
	cleaned := stripFences(raw)

	var wire []wireProposal
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		var wrapped struct {
			Proposals []wireProposal `json:"proposals"`
		}
		if err2 := json.Unmarshal([]byte(cleaned), &wrapped); err2 != nil {
			return nil, fmt.Errorf("parse extractor reply: %w (reply: %.120s)", err, raw)
		}
		wire = wrapped.Proposals
	}

	var out []Proposal
	for _, w := range wire {
		typ := strings.ToLower(strings.TrimSpace(w.Type))
		content := normalizeContent(w.Content)
		if content == "" {
			continue
		}
		if !allowedTypes[typ] {
			debug.Logf("extract: dropping proposal with unknown type %q", w.Type)
			continue
		}
		conf := w.Confidence
		if conf == 0 {
			conf = 0.5
		}
		out = append(out, Proposal{
			SourceID:     sourceID,
			ArtifactType: typ,
			Content:      content,
			Confidence:   clampConfidence(conf),
			Rationale:    strings.TrimSpace(w.Rationale),
		})
	}
	return out, nil
}

// stripFences removes a markdown code fence some models add despite the
// instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
