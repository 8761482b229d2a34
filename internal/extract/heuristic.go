package extract

import (
	"context"
	"regexp"
	"strings"
)

// cue is one sentence-level signal. Stronger cues carry higher confidence.
type cue struct {
	artifactType string
	re           *regexp.Regexp
	confidence   float64
	label        string
}

// Ordered by priority: the first cue that matches a sentence wins. Explicit
// prefixes ("decision:") beat verb phrases, which beat bare modals.
var sentenceCues = []cue{
	{"decision", regexp.MustCompile(`(?i)^\s*decision\s*:`), 0.9, "decision prefix"},
	{"constraint", regexp.MustCompile(`(?i)^\s*constraint\s*:`), 0.9, "constraint prefix"},
	{"principle", regexp.MustCompile(`(?i)^\s*principle\s*:`), 0.9, "principle prefix"},
	{"requirement", regexp.MustCompile(`(?i)^\s*requirement\s*:`), 0.9, "requirement prefix"},

	{"decision", regexp.MustCompile(`(?i)\b(we|i|team)\s+(decided|chose|picked|settled on)\b`), 0.7, "decision verb"},
	{"decision", regexp.MustCompile(`(?i)\b(going with|we('| a)re using|we will use|let'?s use)\b`), 0.6, "decision phrase"},
	{"constraint", regexp.MustCompile(`(?i)\b(must not|must never|cannot|can't|shall not|is forbidden)\b`), 0.7, "prohibition"},
	{"constraint", regexp.MustCompile(`(?i)\b(must|has to|have to|is required to|only .{1,40} (may|can))\b`), 0.55, "obligation"},
	{"principle", regexp.MustCompile(`(?i)\b(as a rule|we believe|prefer\s+\S.{0,60}\bover\b|always favor)\b`), 0.6, "principle phrase"},
	{"requirement", regexp.MustCompile(`(?i)\b(needs? to support|should support|users? (need|want|expect)|required feature)\b`), 0.6, "requirement phrase"},
}

// questionCue fires on sentences that end with a question mark and are long
// enough to stand alone.
var questionCue = cue{"question", nil, 0.65, "interrogative"}

// HeuristicExtractor finds proposal candidates with sentence-level regex
// cues. Deterministic and offline; the fallback when no provider is up.
type HeuristicExtractor struct {
	minLen int
}

// NewHeuristicExtractor returns the regex extractor with default thresholds.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{minLen: 12}
}

// Name implements Extractor.
func (h *HeuristicExtractor) Name() string { return "heuristic" }

// Extract implements Extractor. The artifactContext is used only for
// dedupe: sentences already present there verbatim are skipped.
func (h *HeuristicExtractor) Extract(ctx context.Context, text, sourceID, artifactContext string) ([]Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	known := strings.ToLower(artifactContext)
	seen := make(map[string]bool)
	var proposals []Proposal

	for _, sentence := range splitSentences(text) {
		if len(sentence) < h.minLen {
			continue
		}
		matched, ok := h.classify(sentence)
		if !ok {
			continue
		}
		content := normalizeContent(sentence)
		key := strings.ToLower(content)
		if seen[key] {
			continue
		}
		if known != "" && strings.Contains(known, key) {
			continue
		}
		seen[key] = true
		proposals = append(proposals, Proposal{
			SourceID:     sourceID,
			ArtifactType: matched.artifactType,
			Content:      content,
			Confidence:   matched.confidence,
			Rationale:    "matched " + matched.label,
		})
	}
	return proposals, nil
}

// classify returns the winning cue for a sentence.
func (h *HeuristicExtractor) classify(sentence string) (cue, bool) {
	if strings.HasSuffix(strings.TrimSpace(sentence), "?") {
		return questionCue, true
	}
	for _, c := range sentenceCues {
		if c.re.MatchString(sentence) {
			return c, true
		}
	}
	return cue{}, false
}

// splitSentences breaks text on terminal punctuation and blank lines. The
// terminator stays attached so question detection still works.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		b.Reset()
		if s != "" {
			out = append(out, s)
		}
	}
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			flush()
		case '\n':
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}
