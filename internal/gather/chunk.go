package gather

import (
	"path/filepath"
	"sort"
	"strings"
)

// Strategy selects how the broker packs sources into chunks.
type Strategy string

const (
	// StrategySize packs in plan order until the limit fills.
	StrategySize Strategy = "size"
	// StrategyCoherence groups related sources first (the default): explicit
	// labels, same directory, test with its implementation, greps trailing.
	StrategyCoherence Strategy = "coherence"
	// StrategyPriority sorts globally by priority, then packs by size.
	StrategyPriority Strategy = "priority"
)

const (
	// DefaultSizeLimit bounds a chunk when the plan does not say.
	DefaultSizeLimit = 256 * 1024
	// templateOverhead reserves room for the rendered banner, header and
	// manifest.
	templateOverhead = 2048
)

// ChunkBroker splits a plan's sources into size-bounded chunks.
type ChunkBroker struct {
	Strategy  Strategy
	SizeLimit int64
}

// NewChunkBroker applies defaults: coherence strategy, DefaultSizeLimit.
func NewChunkBroker(strategy Strategy, sizeLimit int64) *ChunkBroker {
	if strategy == "" {
		strategy = StrategyCoherence
	}
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	return &ChunkBroker{Strategy: strategy, SizeLimit: sizeLimit}
}

// Chunk orders and packs sources. estimates is parallel to sources; the
// returned chunks carry the original plan indices so results can be put back
// in plan order after gathering.
func (b *ChunkBroker) Chunk(sources []Source, estimates []int64) []Chunk {
	if len(sources) == 0 {
		return nil
	}
	order := make([]int, len(sources))
	for i := range order {
		order[i] = i
	}

	switch b.Strategy {
	case StrategyPriority:
		// Lower priority value sorts earlier; stable keeps plan order
		// within a level.
		sort.SliceStable(order, func(i, j int) bool {
			return sources[order[i]].Priority < sources[order[j]].Priority
		})
	case StrategyCoherence:
		order = coherenceOrder(sources)
	}

	limit := b.SizeLimit - templateOverhead
	if limit < 1024 {
		limit = 1024
	}

	var chunks []Chunk
	var cur Chunk
	flush := func() {
		if len(cur.Sources) > 0 {
			chunks = append(chunks, cur)
			cur = Chunk{}
		}
	}
	for _, idx := range order {
		est := estimates[idx]
		if len(cur.Sources) > 0 && cur.Estimated+est > limit {
			flush()
		}
		cur.Sources = append(cur.Sources, sources[idx])
		cur.Indices = append(cur.Indices, idx)
		cur.Estimated += est
	}
	flush()
	return chunks
}

// coherenceOrder groups sources by affinity and returns plan indices in
// group order. Groups sort by the best (lowest) priority they contain, plan
// position breaking ties; the grep group always trails.
func coherenceOrder(sources []Source) []int {
	type group struct {
		members  []int
		minPri   int
		first    int
		trailing bool
	}

	// Stems shared by at least two file-ish sources become pair groups, so
	// parser.py and test_parser.py travel together even across directories.
	stemCount := map[string]int{}
	for _, s := range sources {
		if s.Type == SourceFile || s.Type == SourceSymbol {
			stemCount[affinityStem(s)]++
		}
	}

	byKey := map[string]*group{}
	var keys []string
	for i, s := range sources {
		key, trailing := affinityKey(s, stemCount)
		g, ok := byKey[key]
		if !ok {
			g = &group{minPri: s.Priority, first: i, trailing: trailing}
			byKey[key] = g
			keys = append(keys, key)
		}
		g.members = append(g.members, i)
		if s.Priority < g.minPri {
			g.minPri = s.Priority
		}
	}

	sort.SliceStable(keys, func(a, b int) bool {
		ga, gb := byKey[keys[a]], byKey[keys[b]]
		if ga.trailing != gb.trailing {
			return !ga.trailing
		}
		if ga.minPri != gb.minPri {
			return ga.minPri < gb.minPri
		}
		return ga.first < gb.first
	})

	var order []int
	for _, key := range keys {
		order = append(order, byKey[key].members...)
	}
	return order
}

func affinityKey(s Source, stemCount map[string]int) (key string, trailing bool) {
	if s.Group != "" {
		return "label:" + s.Group, false
	}
	switch s.Type {
	case SourceGrep:
		return "grep", true
	case SourceBash:
		return "meta:bash", false
	case SourceGlob:
		return "meta:glob", false
	}
	if stem := affinityStem(s); stemCount[stem] > 1 {
		return "pair:" + stem, false
	}
	return "dir:" + filepath.ToSlash(filepath.Dir(s.Path)), false
}

// affinityStem normalizes a file name down to what a test and its
// implementation share: test_parser.py, parser_test.go, parser.spec.ts and
// parser.py all stem to "parser".
func affinityStem(s Source) string {
	base := filepath.Base(s.Path)
	if s.Type == SourceSymbol {
		base = s.Name
	}
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	for {
		switch {
		case strings.HasPrefix(stem, "test_"):
			stem = stem[len("test_"):]
		case strings.HasPrefix(stem, "spec_"):
			stem = stem[len("spec_"):]
		case strings.HasSuffix(stem, "_test"):
			stem = stem[:len(stem)-len("_test")]
		case strings.HasSuffix(stem, "_spec"):
			stem = stem[:len(stem)-len("_spec")]
		case strings.HasSuffix(stem, ".test"):
			stem = stem[:len(stem)-len(".test")]
		case strings.HasSuffix(stem, ".spec"):
			stem = stem[:len(stem)-len(".spec")]
		default:
			return stem
		}
	}
}
