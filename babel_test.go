package babel_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/babelhq/babel"
	"github.com/babelhq/babel/internal/config"
)

// hermetic settings: no LLM provider, so captures take the heuristic path.
func testSettings() config.Settings {
	st := config.Defaults()
	st.LLM.Active = "local"
	st.LLM.Local = config.ProviderSettings{}
	return st
}

func TestOpenCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := testSettings()
	ws, err := babel.Open(ctx, dir, babel.Options{Create: true, Settings: &st})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close()

	if ws.Root != dir {
		t.Errorf("Root = %q, want %q", ws.Root, dir)
	}
	if _, err := os.Stat(filepath.Join(dir, ".babel")); err != nil {
		t.Errorf(".babel not scaffolded: %v", err)
	}
}

func TestOpenFindsNearestRoot(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := testSettings()
	ws, err := babel.Open(ctx, dir, babel.Options{Create: true, Settings: &st})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ws.Close()

	nested := filepath.Join(dir, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	ws2, err := babel.Open(ctx, nested, babel.Options{Settings: &st})
	if err != nil {
		t.Fatalf("Open from nested dir: %v", err)
	}
	defer ws2.Close()

	if ws2.Root != dir {
		t.Errorf("Root = %q, want ancestor %q", ws2.Root, dir)
	}
}

func TestOpenWithoutWorkspaceFails(t *testing.T) {
	st := testSettings()
	_, err := babel.Open(context.Background(), t.TempDir(), babel.Options{Settings: &st})
	if err == nil {
		t.Fatal("expected error opening a directory with no .babel")
	}
}

func TestCaptureThroughFacade(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := testSettings()
	ws, err := babel.Open(ctx, dir, babel.Options{Create: true, Settings: &st})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close()

	if _, err := ws.Init(ctx, "demo", "", "keep the why"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	out, err := ws.Capture(ctx, babel.CaptureOptions{
		Text: "store journals as JSONL so merges stay line-based",
		Type: "decision",
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if out.ArtifactNodeID == "" {
		t.Fatal("typed capture produced no artifact node")
	}

	n := ws.Graph.Node(out.ArtifactNodeID)
	if n == nil {
		t.Fatalf("node %s not projected", out.ArtifactNodeID)
	}
	if n.Type != babel.NodeDecision {
		t.Errorf("node type = %s, want decision", n.Type)
	}
	if n.Scope != babel.ScopeShared {
		t.Errorf("scope = %s, want shared", n.Scope)
	}
}
