package gather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/babelhq/babel/internal/orchestrator"
)

func newTestOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	o := orchestrator.New(orchestrator.Options{
		Enabled:        true,
		IOWorkers:      4,
		CPUWorkers:     2,
		LLMConcurrent:  1,
		LLMRateLimit:   100,
		DefaultTimeout: 10 * time.Second,
	}, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.Shutdown(ctx, true, false)
	})
	return o
}

func writePlanFiles(t *testing.T, root string, n int) []Source {
	t.Helper()
	sources := make([]Source, 0, n)
	for i := 0; i < n; i++ {
		rel := fmt.Sprintf("src/file%02d.txt", i)
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(fmt.Sprintf("content of %02d\n", i)), 0644); err != nil {
			t.Fatal(err)
		}
		sources = append(sources, FileSource(rel))
	}
	return sources
}

func TestParallelGatherKeepsPlanOrderAndSkipsLimiter(t *testing.T) {
	requireTool(t, "sh")
	root := t.TempDir()
	orch := newTestOrchestrator(t)
	g := New(root, orch, nil)

	sources := writePlanFiles(t, root, 10)
	sources = append(sources, BashSource("echo hi"))
	plan := &Plan{Operation: "test", Sources: sources}

	results, err := g.Gather(context.Background(), plan)
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(results) != 11 {
		t.Fatalf("Gather() returned %d results, want 11", len(results))
	}
	for i := 0; i < 10; i++ {
		if results[i].Source.Ref != plan.Sources[i].Ref {
			t.Errorf("result %d source = %s, want %s", i, results[i].Source.Ref, plan.Sources[i].Ref)
		}
		want := fmt.Sprintf("content of %02d\n", i)
		if results[i].Content != want {
			t.Errorf("result %d content = %q, want %q", i, results[i].Content, want)
		}
	}
	if !strings.Contains(results[10].Content, "hi") {
		t.Errorf("bash result = %q, want echo output", results[10].Content)
	}

	// Plain I/O gathering must never touch the LLM limiter.
	if permits := orch.Summary().LLMPermits; permits != 0 {
		t.Errorf("LLM permits acquired = %d, want 0", permits)
	}
}

func TestSafetyViolationStopsPlanBeforeAnySubprocess(t *testing.T) {
	root := t.TempDir()
	g := New(root, nil, nil)
	sentinel := filepath.Join(root, "executed")

	plan := &Plan{
		Operation: "test",
		Sources: []Source{
			BashSource("touch " + sentinel),
			BashSource(`babel capture "x"`),
		},
	}

	_, err := g.Gather(context.Background(), plan)
	var violation *SafetyViolation
	if !errors.As(err, &violation) {
		t.Fatalf("Gather() error = %v, want SafetyViolation", err)
	}
	if violation.Category != CategoryMutation {
		t.Errorf("category = %s, want MUTATION", violation.Category)
	}
	if _, statErr := os.Stat(sentinel); !os.IsNotExist(statErr) {
		t.Error("a subprocess ran before the safety gate rejected the plan")
	}
}

func TestSequentialFallbackProducesIdenticalOutput(t *testing.T) {
	root := t.TempDir()
	sources := writePlanFiles(t, root, 4)
	missing := FileSource("src/missing.txt")
	sources = append(sources, missing)
	plan := &Plan{Operation: "test", Sources: sources}

	seq := New(root, nil, nil)
	seqResults, err := seq.Gather(context.Background(), plan)
	if err != nil {
		t.Fatalf("sequential Gather() error = %v", err)
	}

	par := New(root, newTestOrchestrator(t), nil)
	parResults, err := par.Gather(context.Background(), plan)
	if err != nil {
		t.Fatalf("parallel Gather() error = %v", err)
	}

	if len(seqResults) != len(parResults) {
		t.Fatalf("result counts differ: %d vs %d", len(seqResults), len(parResults))
	}
	for i := range seqResults {
		s, p := seqResults[i], parResults[i]
		if s.Content != p.Content || s.Error != p.Error || s.Source.Ref != p.Source.Ref {
			t.Errorf("result %d differs: seq={%q %q} par={%q %q}",
				i, s.Content, s.Error, p.Content, p.Error)
		}
	}

	if seqResults[4].OK() {
		t.Error("missing file gathered without error")
	}
	if !strings.Contains(seqResults[4].Error, "does not exist") {
		t.Errorf("missing file error = %q", seqResults[4].Error)
	}
}

func TestGatherChunksRespectPlanLimit(t *testing.T) {
	root := t.TempDir()
	var sources []Source
	for i := 0; i < 6; i++ {
		rel := fmt.Sprintf("src/part%d.txt", i)
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(strings.Repeat("x", 600)), 0644); err != nil {
			t.Fatal(err)
		}
		sources = append(sources, FileSource(rel))
	}
	plan := &Plan{Operation: "test", Sources: sources, SizeLimit: templateOverhead + 1300}

	g := New(root, nil, nil)
	chunked, err := g.GatherChunks(context.Background(), plan)
	if err != nil {
		t.Fatalf("GatherChunks() error = %v", err)
	}
	if len(chunked) != 3 {
		t.Fatalf("chunks = %d, want 3 (two 600-byte files per 1300-byte chunk)", len(chunked))
	}
	seen := 0
	for _, cr := range chunked {
		if len(cr.Results) != len(cr.Chunk.Sources) {
			t.Errorf("chunk results %d != sources %d", len(cr.Results), len(cr.Chunk.Sources))
		}
		seen += len(cr.Results)
	}
	if seen != 6 {
		t.Errorf("gathered %d sources across chunks, want 6", seen)
	}
}

func TestRenderMarkdownLayout(t *testing.T) {
	plan := &Plan{Operation: "why", Intent: "trace a decision"}
	results := []Result{
		{
			Source:  FileSource("internal/pay/charge.go"),
			Content: "package pay\n",
			Size:    12, Lines: 2, Duration: time.Millisecond,
		},
		{
			Source: FileSource("gone.go"),
			Error:  "file does not exist: gone.go",
		},
	}

	r := &Renderer{Now: func() time.Time {
		return time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	}}
	doc := r.Render(plan, 2, 3, results, []string{"one source failed"})

	for _, want := range []string{
		"BABEL CONTEXT",
		"operation: why",
		"intent:    trace a decision",
		"chunk:     2/3",
		"generated: 2026-04-02T09:00:00Z",
		"warnings:  one source failed",
		"MANIFEST",
		"[1/2] FILE: internal/pay/charge.go",
		"lines: 2, size: 12 bytes",
		"```go\npackage pay\n```",
		"[2/2] FILE: gone.go",
		"ERROR: file does not exist: gone.go",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("rendered doc missing %q\n%s", want, doc)
		}
	}

	// The closing banner is the same line every chunk emits.
	if !strings.HasSuffix(strings.TrimRight(doc, "\n"), banner) {
		t.Error("doc does not end with the banner")
	}
	if strings.Count(doc, banner) != 3 {
		t.Errorf("banner count = %d, want 3 (open pair + close)", strings.Count(doc, banner))
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	results := []Result{
		{Source: BashSource("echo hi"), Content: "hi\n", Size: 3, Lines: 2},
	}
	r := &Renderer{}
	data, err := r.RenderJSON(results)
	if err != nil {
		t.Fatalf("RenderJSON() error = %v", err)
	}
	var decoded []Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(decoded) != 1 || decoded[0].Content != "hi\n" || decoded[0].Source.Type != SourceBash {
		t.Errorf("round trip = %+v", decoded)
	}
}
