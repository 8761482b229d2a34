package gather

import (
	"testing"
)

func refs(chunks []Chunk) [][]string {
	var out [][]string
	for _, c := range chunks {
		var names []string
		for _, s := range c.Sources {
			names = append(names, s.Ref)
		}
		out = append(out, names)
	}
	return out
}

func chunkOf(t *testing.T, chunks []Chunk, ref string) int {
	t.Helper()
	for i, c := range chunks {
		for _, s := range c.Sources {
			if s.Ref == ref {
				return i
			}
		}
	}
	t.Fatalf("source %q not in any chunk: %v", ref, refs(chunks))
	return -1
}

func TestSizeStrategyPacksInPlanOrder(t *testing.T) {
	sources := []Source{
		FileSource("a.go"), FileSource("b.go"), FileSource("c.go"), FileSource("d.go"),
	}
	estimates := []int64{4000, 4000, 4000, 4000}

	broker := NewChunkBroker(StrategySize, 8192+templateOverhead)
	chunks := broker.Chunk(sources, estimates)

	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2: %v", len(chunks), refs(chunks))
	}
	if chunks[0].Sources[0].Ref != "a.go" || chunks[0].Sources[1].Ref != "b.go" {
		t.Errorf("chunk 0 = %v, want [a.go b.go]", refs(chunks)[0])
	}
	if chunks[1].Sources[0].Ref != "c.go" || chunks[1].Sources[1].Ref != "d.go" {
		t.Errorf("chunk 1 = %v, want [c.go d.go]", refs(chunks)[1])
	}
	if chunks[0].Indices[0] != 0 || chunks[1].Indices[0] != 2 {
		t.Errorf("indices not preserved: %v / %v", chunks[0].Indices, chunks[1].Indices)
	}
}

func TestCoherenceKeepsTestWithImplementationAndTrailsGrep(t *testing.T) {
	sources := []Source{
		GrepSource("Charge", "internal"),
		FileSource("internal/pay/parser.py"),
		FileSource("internal/billing/invoice.py"),
		FileSource("tests/test_parser.py"),
		FileSource("internal/billing/totals.py"),
	}
	// Total is double the effective limit, so at least two chunks.
	estimates := []int64{2000, 4000, 4000, 4000, 4000}
	limit := int64(9000)

	broker := NewChunkBroker(StrategyCoherence, limit+templateOverhead)
	chunks := broker.Chunk(sources, estimates)

	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want >= 2: %v", len(chunks), refs(chunks))
	}
	for i, c := range chunks {
		if c.Estimated > limit {
			t.Errorf("chunk %d estimated %d over limit %d", i, c.Estimated, limit)
		}
	}

	impl := chunkOf(t, chunks, "internal/pay/parser.py")
	test := chunkOf(t, chunks, "tests/test_parser.py")
	if impl != test {
		t.Errorf("parser.py in chunk %d but test_parser.py in chunk %d, want together", impl, test)
	}

	grep := chunkOf(t, chunks, "Charge in internal")
	if grep != len(chunks)-1 {
		t.Errorf("grep in chunk %d, want last (%d)", grep, len(chunks)-1)
	}
	last := chunks[len(chunks)-1].Sources
	if last[len(last)-1].Type != SourceGrep {
		t.Errorf("grep not at tail of last chunk: %v", refs(chunks))
	}
}

func TestCoherenceGroupsByDirectoryAndLabel(t *testing.T) {
	labeled1 := FileSource("x/alpha.go")
	labeled1.Group = "hot"
	labeled2 := FileSource("y/beta.go")
	labeled2.Group = "hot"
	sources := []Source{
		FileSource("a/one.go"),
		labeled1,
		FileSource("a/two.go"),
		labeled2,
	}
	estimates := []int64{100, 100, 100, 100}

	broker := NewChunkBroker(StrategyCoherence, 0)
	chunks := broker.Chunk(sources, estimates)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	got := refs(chunks)[0]
	// Directory group a/ comes first (plan position), label group stays
	// contiguous.
	want := []string{"a/one.go", "a/two.go", "x/alpha.go", "y/beta.go"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("coherence order = %v, want %v", got, want)
		}
	}
}

func TestCoherenceSortsGroupsByMinPriority(t *testing.T) {
	urgent := FileSource("z/urgent.go")
	urgent.Priority = 1
	sources := []Source{
		FileSource("a/routine.go"),
		urgent,
	}
	estimates := []int64{100, 100}

	chunks := NewChunkBroker(StrategyCoherence, 0).Chunk(sources, estimates)
	got := refs(chunks)[0]
	if got[0] != "z/urgent.go" {
		t.Errorf("order = %v, want urgent first", got)
	}
}

func TestPriorityStrategySortsGlobally(t *testing.T) {
	low := FileSource("low.go")
	low.Priority = 200
	mid := FileSource("mid.go")
	mid.Priority = 50
	high := FileSource("high.go")
	high.Priority = 1
	sources := []Source{low, mid, high}
	estimates := []int64{10, 10, 10}

	chunks := NewChunkBroker(StrategyPriority, 0).Chunk(sources, estimates)
	got := refs(chunks)[0]
	want := []string{"high.go", "mid.go", "low.go"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("priority order = %v, want %v", got, want)
		}
	}
}

func TestOversizeGroupStillSplits(t *testing.T) {
	sources := []Source{
		FileSource("pkg/a.go"), FileSource("pkg/b.go"), FileSource("pkg/c.go"),
	}
	estimates := []int64{4000, 4000, 4000}

	chunks := NewChunkBroker(StrategyCoherence, 5000+templateOverhead).Chunk(sources, estimates)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3 (one group over the limit splits)", len(chunks))
	}
}
