package gather

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/babelhq/babel/internal/debug"
	"github.com/babelhq/babel/internal/orchestrator"
	"github.com/babelhq/babel/internal/symbols"
)

// Gatherer runs gather plans against one project tree. It owns the safety
// gate and knows how to fan work out through the orchestrator; the source
// primitives themselves stay pure.
type Gatherer struct {
	root   string
	orch   *orchestrator.Orchestrator
	ix     *symbols.Index
	safety *Safety
	broker *ChunkBroker
}

// ChunkResult pairs a chunk with its gathered results, in chunk order.
type ChunkResult struct {
	Chunk   Chunk
	Results []Result
}

// New builds a gatherer. orch may be nil (sequential gathering) and ix may
// be nil (symbol sources error individually).
func New(root string, orch *orchestrator.Orchestrator, ix *symbols.Index) *Gatherer {
	return &Gatherer{
		root:   root,
		orch:   orch,
		ix:     ix,
		safety: NewSafety(),
		broker: NewChunkBroker(StrategyCoherence, 0),
	}
}

// Safety exposes the gate for introspection and policy overrides.
func (g *Gatherer) Safety() *Safety { return g.safety }

// SetStrategy switches the chunking strategy.
func (g *Gatherer) SetStrategy(s Strategy) { g.broker.Strategy = s }

// Gather runs the whole pipeline and returns one result per plan source, in
// plan order regardless of chunking or completion order. Per-source failures
// land in Result.Error; only safety violations and cancellation fail the
// plan itself.
func (g *Gatherer) Gather(ctx context.Context, plan *Plan) ([]Result, error) {
	chunked, err := g.GatherChunks(ctx, plan)
	if err != nil {
		return nil, err
	}
	flat := make([]Result, len(plan.Sources))
	for _, cr := range chunked {
		for i, res := range cr.Results {
			flat[cr.Chunk.Indices[i]] = res
		}
	}
	return flat, nil
}

// GatherChunks runs the pipeline keeping the chunk structure, for rendering
// chunk N/M documents.
func (g *Gatherer) GatherChunks(ctx context.Context, plan *Plan) ([]ChunkResult, error) {
	// Every bash source clears the gate before anything at all executes.
	for _, s := range plan.Sources {
		if s.Type == SourceBash {
			if err := g.safety.Check(s.Command); err != nil {
				return nil, err
			}
		}
	}

	estimates := EstimateSizes(ctx, g.root, plan.Sources)
	broker := *g.broker
	if plan.SizeLimit > 0 {
		broker.SizeLimit = plan.SizeLimit
	}
	chunks := broker.Chunk(plan.Sources, estimates)

	out := make([]ChunkResult, 0, len(chunks))
	for _, chunk := range chunks {
		results, err := g.gatherChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, ChunkResult{Chunk: chunk, Results: results})
	}
	return out, nil
}

// gatherChunk fans one chunk's sources out as plain I/O tasks. Without an
// orchestrator it loops sequentially; output is identical either way.
func (g *Gatherer) gatherChunk(ctx context.Context, chunk Chunk) ([]Result, error) {
	if g.orch == nil {
		results := make([]Result, len(chunk.Sources))
		for i, s := range chunk.Sources {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = g.gatherSource(ctx, s)
		}
		return results, nil
	}
	return orchestrator.MapParallel(ctx, g.orch, chunk.Sources,
		orchestrator.KindIO, orchestrator.PriorityNormal, 0,
		func(ctx context.Context, s Source) (Result, error) {
			return g.gatherSource(ctx, s), nil
		})
}

// gatherSource executes one source. Failures become the result's Error so a
// bad path never sinks the rest of the plan.
func (g *Gatherer) gatherSource(ctx context.Context, s Source) Result {
	start := time.Now()
	var content string
	var err error

	switch s.Type {
	case SourceFile:
		content, _, err = File(resolvePath(g.root, s.Path))
	case SourceGrep:
		content, err = Grep(ctx, s.Pattern, resolvePath(g.root, s.Path), s.MaxMatches, s.ContextLines)
	case SourceBash:
		if err = g.safety.Check(s.Command); err == nil {
			cwd := s.Cwd
			if cwd == "" {
				cwd = g.root
			}
			var code int
			content, code, err = Bash(ctx, s.Command, s.Timeout, cwd)
			if err == nil && code != 0 {
				content += fmt.Sprintf("\n(exit %d)", code)
			}
		}
	case SourceGlob:
		base := s.Base
		if base == "" {
			base = g.root
		}
		var files []string
		var total int64
		files, total, err = Glob(s.Pattern, base)
		if err == nil {
			content = fmt.Sprintf("%s\n\n%d files, %d bytes total",
				strings.Join(files, "\n"), len(files), total)
		}
	case SourceSymbol:
		ctxLines := s.ContextLines
		if ctxLines <= 0 {
			ctxLines = 5
		}
		content, err = SymbolRange(g.ix, g.root, s.Name, ctxLines)
	default:
		err = fmt.Errorf("unknown source type %q", s.Type)
	}

	res := Result{Source: s, Duration: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
		debug.Logf("gather: %s %s: %v\n", s.Type, s.Ref, err)
		return res
	}
	res.Content = content
	res.Size = len(content)
	if content != "" {
		res.Lines = strings.Count(content, "\n") + 1
	}
	return res
}
