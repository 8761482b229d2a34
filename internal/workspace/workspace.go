// Package workspace wires the babel subsystems into one environment: the
// journals, the projected graph, the ref index, the symbol index, the task
// orchestrator and the stores around them. Commands receive a *Workspace and
// call its operations; nothing in this package prints or parses flags.
//
// There are no package-level singletons here. Every dependency lives on the
// struct, so tests open as many isolated workspaces as they like and run them
// in parallel.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/babelhq/babel/internal/config"
	"github.com/babelhq/babel/internal/debug"
	"github.com/babelhq/babel/internal/eventlog"
	"github.com/babelhq/babel/internal/extract"
	"github.com/babelhq/babel/internal/gather"
	"github.com/babelhq/babel/internal/graph"
	"github.com/babelhq/babel/internal/llm"
	"github.com/babelhq/babel/internal/memo"
	"github.com/babelhq/babel/internal/orchestrator"
	"github.com/babelhq/babel/internal/refs"
	"github.com/babelhq/babel/internal/symbols"
	"github.com/babelhq/babel/internal/telemetry"
	"github.com/babelhq/babel/internal/types"
)

// File names under .babel/ beyond the journals.
const (
	graphDBName      = "graph.db"
	symbolCacheName  = "symbol_cache.json"
	memosName        = "memos.json"
	extractQueueName = "extract_queue.json"
	languagesName    = "languages.toml"
)

// Workspace is the explicit environment every command runs against.
type Workspace struct {
	// Root is the project directory; Dir is Root/.babel.
	Root string
	Dir  string

	Settings config.Settings
	Actor    string

	Log       *eventlog.Log
	Graph     *graph.Graph
	Projector *graph.Projector
	Refs      *refs.Index
	Loader    *refs.Loader
	Symbols   *symbols.Index
	Orch      *orchestrator.Orchestrator
	Gatherer  *gather.Gatherer
	Memos     *memo.Store
	Queue     *extract.Queue

	// Provider is nil when no LLM is reachable; every flow that wants one
	// degrades to the heuristic extractor.
	Provider llm.Provider

	cache *graph.Cache
	ops   *telemetry.OpRecorder

	// applyMu serializes the in-process write path (append + project +
	// index). The aggregator's consumer and the foreground command both
	// funnel through it; cross-process exclusion is the journal flock.
	applyMu sync.Mutex

	// events mirrors both journals by id for origin lookups and budgeted
	// loading. Maintained under applyMu.
	events map[string]*types.Event

	watcher *eventlog.Watcher
	closeMu sync.Mutex
	closed  bool
}

// Options adjusts Open. The zero value is what the CLI uses.
type Options struct {
	// Create initializes .babel/ when missing instead of failing.
	Create bool
	// Settings overrides the layered configuration snapshot. Tests inject
	// config.Defaults() here to stay independent of the process environment.
	Settings *config.Settings
	// Actor stamps capture provenance; empty falls back to the environment.
	Actor string
	// WithoutOrchestrator opens in degraded mode regardless of settings.
	WithoutOrchestrator bool
}

// Open loads the workspace rooted at dir (or the nearest ancestor holding a
// .babel directory). It replays the journals into the graph and ref index,
// warm-starting from the sqlite cache when it is fresh, and starts the
// orchestrator unless configured off.
func Open(ctx context.Context, dir string, opts Options) (*Workspace, error) {
	root, err := resolveRoot(dir, opts.Create)
	if err != nil {
		return nil, err
	}

	var st config.Settings
	if opts.Settings != nil {
		st = *opts.Settings
	} else {
		st = config.Snapshot()
	}

	ws := &Workspace{
		Root:     root,
		Dir:      filepath.Join(root, config.BabelDirName),
		Settings: st,
		Actor:    resolveActor(opts.Actor),
		events:   make(map[string]*types.Event),
		ops:      telemetry.NewOpRecorder(),
	}

	if opts.Create {
		if err := scaffold(ws.Dir); err != nil {
			return nil, err
		}
	}

	ws.Log, err = eventlog.Open(ws.Dir, eventlog.WithFsync(st.LogFsync))
	if err != nil {
		return nil, err
	}

	if err := ws.openGraph(ctx); err != nil {
		_ = ws.Log.Close()
		return nil, err
	}

	ws.Loader = refs.NewLoader(ws)

	reg, rerr := symbols.LoadRegistry(filepath.Join(ws.Dir, languagesName))
	if rerr != nil {
		debug.Logf("workspace: ignoring %s: %v\n", languagesName, rerr)
		reg = symbols.DefaultRegistry()
	}
	ws.Symbols = symbols.New(root, filepath.Join(ws.Dir, symbolCacheName),
		symbols.WithRegistry(reg),
		symbols.WithMaxFileSize(st.SymbolMaxFileSize))
	ws.Symbols.Load()

	agg := orchestrator.NewAggregator(ctx, ws.sinkResults)
	ws.Orch = orchestrator.New(orchestrator.Options{
		Enabled:        st.Parallel.Enabled && !opts.WithoutOrchestrator,
		IOWorkers:      st.Parallel.IOWorkers,
		CPUWorkers:     st.Parallel.CPUWorkers,
		LLMConcurrent:  st.Parallel.LLMConcurrent,
		LLMRateLimit:   st.Parallel.LLMRateLimit,
		DefaultTimeout: st.Parallel.TaskTimeout,
	}, agg)

	ws.Gatherer = gather.New(root, ws.Orch, ws.Symbols)
	ws.Memos = memo.Open(filepath.Join(ws.Dir, memosName))

	ws.Queue, err = extract.OpenQueue(filepath.Join(ws.Dir, string(types.ScopeLocal), extractQueueName))
	if err != nil {
		debug.Logf("workspace: extract queue unavailable: %v\n", err)
	}

	if p, err := llm.Select(st.LLM); err == nil {
		ws.Provider = p
	} else {
		debug.Logf("workspace: no llm provider: %v\n", err)
	}

	return ws, nil
}

// resolveRoot locates the project root. With create, dir itself becomes the
// root when no ancestor already is one.
func resolveRoot(dir string, create bool) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("workspace: resolve %s: %w", dir, err)
	}
	if root, err := config.FindProjectRoot(abs); err == nil {
		return root, nil
	} else if !create {
		return "", err
	}
	return abs, nil
}

// scaffold lays down the .babel tree: scope directories plus the gitignore
// that keeps local state out of version control. Shared state (the shared
// journal, config.yaml) is deliberately not ignored.
func scaffold(babelDir string) error {
	for _, sub := range []string{
		babelDir,
		filepath.Join(babelDir, string(types.ScopeShared)),
		filepath.Join(babelDir, string(types.ScopeLocal)),
	} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("workspace: create %s: %w", sub, err)
		}
	}
	gi := filepath.Join(babelDir, ".gitignore")
	if _, err := os.Stat(gi); os.IsNotExist(err) {
		content := "local/\ngraph.db\nsymbol_cache.json\nmemos.json\n"
		if err := os.WriteFile(gi, []byte(content), 0o644); err != nil {
			return fmt.Errorf("workspace: write .gitignore: %w", err)
		}
	}
	return nil
}

// resolveActor picks the provenance name: explicit flag, BABEL_ACTOR, then
// the OS user.
func resolveActor(flag string) string {
	if flag != "" {
		return flag
	}
	if a := os.Getenv("BABEL_ACTOR"); a != "" {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

// openGraph builds the projection, warm-starting from graph.db when its meta
// matches the journals, and fills the in-memory event mirror and ref index.
func (ws *Workspace) openGraph(ctx context.Context) error {
	octx, op := ws.ops.Start(ctx, "workspace.open_graph")
	var err error
	defer func() { op.End(octx, err) }()

	var events []*types.Event
	events, err = ws.Log.Merged()
	if err != nil {
		return err
	}

	ws.Refs = refs.NewIndex()
	for _, ev := range events {
		ws.events[ev.ID] = ev
		ws.Refs.Add(ev)
	}

	cache, cerr := graph.OpenCache(filepath.Join(ws.Dir, graphDBName))
	if cerr != nil {
		// A broken cache never blocks an open; project in memory only.
		debug.Logf("workspace: graph cache unavailable: %v\n", cerr)
		cache = nil
	}
	ws.cache = cache

	lastID := ""
	if len(events) > 0 {
		lastID = events[len(events)-1].ID
	}

	if cache != nil && cache.Fresh(len(events), lastID) {
		g, lerr := cache.Load()
		if lerr == nil {
			ids := make([]string, 0, len(events))
			for _, ev := range events {
				ids = append(ids, ev.ID)
			}
			g.MarkApplied(ids...)
			ws.Graph = g
			ws.Projector = graph.NewProjector(g, cache)
			return nil
		}
		debug.Logf("workspace: graph cache load failed, replaying: %v\n", lerr)
	}

	ws.Graph = graph.New()
	ws.Projector = graph.NewProjector(ws.Graph, cache)
	if err = ws.Projector.Rebuild(events); err != nil {
		return err
	}
	ws.recordDamage()
	return nil
}

// recordDamage projects journal-level problems (conflicting duplicate ids,
// corrupt lines) as tension nodes so they are visible where people look.
// Returns the minted tension node ids.
func (ws *Workspace) recordDamage() []string {
	var minted []string
	for _, c := range ws.Log.Conflicts() {
		summary := fmt.Sprintf("conflicting duplicate event id %s", c.ID)
		detail := fmt.Sprintf("two records share id %s with different payloads; the %s journal line %d was quarantined",
			c.ID, c.Scope, c.Line)
		id, err := ws.Projector.RecordTension("conflict:"+c.ID, c.Scope, time.Now(), summary, detail)
		if err != nil {
			debug.Logf("workspace: record conflict tension: %v\n", err)
			continue
		}
		if id != "" {
			minted = append(minted, id)
		}
	}
	for scope, lines := range ws.Log.CorruptLines() {
		for _, line := range lines {
			seed := fmt.Sprintf("corrupt:%s:%d", scope, line)
			summary := fmt.Sprintf("unreadable record in %s journal", scope)
			detail := fmt.Sprintf("line %d does not parse as an event; it is preserved on disk but invisible to the graph", line)
			id, err := ws.Projector.RecordTension(seed, scope, time.Now(), summary, detail)
			if err != nil {
				debug.Logf("workspace: record corruption tension: %v\n", err)
				continue
			}
			if id != "" {
				minted = append(minted, id)
			}
		}
	}
	return minted
}

// Event satisfies refs.EventSource from the in-memory mirror.
func (ws *Workspace) Event(_ context.Context, id string) (*types.Event, error) {
	ws.applyMu.Lock()
	defer ws.applyMu.Unlock()
	ev, ok := ws.events[id]
	if !ok {
		return nil, nil
	}
	return ev.Clone(), nil
}

// Append journals an event, folds it into the graph, and indexes its tokens.
// This is the only in-process write path; everything funnels here.
func (ws *Workspace) Append(ctx context.Context, ev *types.Event) (string, error) {
	ws.applyMu.Lock()
	defer ws.applyMu.Unlock()
	return ws.appendLocked(ctx, ev)
}

func (ws *Workspace) appendLocked(ctx context.Context, ev *types.Event) (string, error) {
	id, err := ws.Log.Append(ctx, ev)
	if err != nil {
		return "", err
	}
	stored := ev.Clone()
	stored.ID = id
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.CreatedAt = stored.CreatedAt.UTC().Truncate(time.Second)
	if clean, serr := eventlog.Sanitize(stored.Data); serr == nil {
		stored.Data = clean
	}
	ws.events[id] = stored
	ws.Refs.Add(stored)
	if _, err := ws.Projector.Apply(stored); err != nil {
		// The journal is the source of truth and the append held; a cache
		// write failure only costs the next open a replay.
		debug.Logf("workspace: project %s: %v\n", id, err)
	}
	return id, nil
}

// sinkResults is the aggregator sink: the single goroutine allowed to turn
// background task output into journal appends. Tasks signal an append by
// returning *types.Event or []*types.Event as their value; everything else
// passes through untouched.
func (ws *Workspace) sinkResults(ctx context.Context, batch []*orchestrator.TaskResult) error {
	for _, res := range batch {
		if res.Failed() || res.Value == nil {
			continue
		}
		switch v := res.Value.(type) {
		case *types.Event:
			if _, err := ws.Append(ctx, v); err != nil {
				return err
			}
		case []*types.Event:
			for _, ev := range v {
				if _, err := ws.Append(ctx, ev); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Extractor returns the best extractor reachable right now: the configured
// LLM when it answers its availability probe, else the heuristic one.
func (ws *Workspace) Extractor(ctx context.Context) extract.Extractor {
	if ws.Provider != nil && ws.Provider.IsAvailable(ctx) {
		return extract.NewLLMExtractor(ws.Provider)
	}
	return extract.NewHeuristicExtractor()
}

// Close shuts the workspace down in dependency order: stop the watcher, then
// the orchestrator (which closes the aggregator after the last worker), then
// persist the symbol cache and release the stores.
func (ws *Workspace) Close() error {
	ws.closeMu.Lock()
	defer ws.closeMu.Unlock()
	if ws.closed {
		return nil
	}
	ws.closed = true

	if ws.watcher != nil {
		_ = ws.watcher.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.Settings.Parallel.ShutdownTimeout)
	defer cancel()
	ws.Orch.Shutdown(ctx, true, false)

	var firstErr error
	if err := ws.Symbols.Save(); err != nil {
		firstErr = err
	}
	if ws.cache != nil {
		if err := ws.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := ws.Log.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
