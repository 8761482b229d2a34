package graph

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	// SQLite driver (WASM build, no cgo).
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/babelhq/babel/internal/types"
)

const schemaVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    what TEXT NOT NULL DEFAULT '',
    why TEXT NOT NULL DEFAULT '',
    domain TEXT NOT NULL DEFAULT '',
    origin_event_id TEXT NOT NULL,
    scope TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    consensus INTEGER NOT NULL DEFAULT 0,
    evidence INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS edges (
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    relation TEXT NOT NULL,
    origin_event_id TEXT NOT NULL,
    PRIMARY KEY (source_id, target_id, relation)
);

CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);
CREATE INDEX IF NOT EXISTS idx_nodes_status ON nodes(status);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Cache persists the projection so reopening a workspace skips replay when
// the journals have not changed. It stores the fold's output, never its
// input: graph.db can be deleted at any time and is rebuilt from the logs.
type Cache struct {
	db   *sql.DB
	path string
}

// OpenCache opens (creating if needed) the projection cache at path. A cache
// written by a different schema version is discarded and recreated empty.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	connStr := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open projection cache: %w", err)
	}
	c := &Cache{db: db, path: path}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("apply cache schema: %w", err)
	}
	var v string
	err := c.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v)
	switch {
	case err == sql.ErrNoRows:
		_, err = c.db.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
		return err
	case err != nil:
		return fmt.Errorf("read cache schema version: %w", err)
	case v != schemaVersion:
		return c.clear()
	}
	return nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Meta describes what the cache was built from, for staleness checks.
type Meta struct {
	LastEventID string
	EventCount  int
}

// Meta returns the replay position the cache reflects. A zero Meta means the
// cache is empty or was never written.
func (c *Cache) Meta() (Meta, error) {
	var m Meta
	rows, err := c.db.Query(`SELECT key, value FROM meta WHERE key IN ('last_event_id', 'event_count')`)
	if err != nil {
		return m, fmt.Errorf("read cache meta: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return m, err
		}
		switch k {
		case "last_event_id":
			m.LastEventID = v
		case "event_count":
			m.EventCount, _ = strconv.Atoi(v)
		}
	}
	return m, rows.Err()
}

// Fresh reports whether the cache matches a journal tail of eventCount events
// ending at lastEventID.
func (c *Cache) Fresh(eventCount int, lastEventID string) bool {
	m, err := c.Meta()
	if err != nil {
		return false
	}
	return m.EventCount == eventCount && m.LastEventID == lastEventID && m.EventCount > 0
}

// Load reads the cached projection into a fresh graph. Active project and
// purpose pointers are restored from meta.
func (c *Cache) Load() (*Graph, error) {
	g := New()

	rows, err := c.db.Query(`
		SELECT id, type, summary, what, why, domain, origin_event_id,
		       scope, status, created_at, updated_at, consensus, evidence
		FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("load cached nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n types.Node
		var createdAt, updatedAt time.Time
		var consensus, evidence int
		if err := rows.Scan(&n.ID, &n.Type, &n.Content.Summary, &n.Content.Detail.What,
			&n.Content.Detail.Why, &n.Content.Domain, &n.OriginEventID,
			&n.Scope, &n.Status, &createdAt, &updatedAt, &consensus, &evidence); err != nil {
			return nil, fmt.Errorf("scan cached node: %w", err)
		}
		n.CreatedAt = createdAt.UTC()
		n.UpdatedAt = updatedAt.UTC()
		n.Consensus = consensus != 0
		n.Evidence = evidence != 0
		g.nodes[n.ID] = &n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	erows, err := c.db.Query(`SELECT source_id, target_id, relation, origin_event_id FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("load cached edges: %w", err)
	}
	defer erows.Close()
	for erows.Next() {
		var e types.Edge
		if err := erows.Scan(&e.SourceID, &e.TargetID, &e.Relation, &e.OriginEventID); err != nil {
			return nil, fmt.Errorf("scan cached edge: %w", err)
		}
		g.addEdge(&e)
	}
	if err := erows.Err(); err != nil {
		return nil, err
	}

	var active string
	if err := c.db.QueryRow(`SELECT value FROM meta WHERE key = 'active_purpose'`).Scan(&active); err == nil {
		g.activePurpose = active
	}
	if err := c.db.QueryRow(`SELECT value FROM meta WHERE key = 'active_project'`).Scan(&active); err == nil {
		g.activeProject = active
	}
	return g, nil
}

// persist writes the graph changes a delta names, inside one transaction.
// Called with the projector's graph after it released its lock.
func (c *Cache) persist(g *Graph, d *Delta) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	g.mu.RLock()
	touched := make(map[string]bool, len(d.NodesAdded)+len(d.NodesUpdated)+len(d.StatusChanges))
	for _, id := range d.NodesAdded {
		touched[id] = true
	}
	for _, id := range d.NodesUpdated {
		touched[id] = true
	}
	for _, sc := range d.StatusChanges {
		touched[sc.NodeID] = true
	}
	for id := range touched {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		if err := upsertNode(tx, n); err != nil {
			g.mu.RUnlock()
			return err
		}
	}
	for _, k := range d.EdgesAdded {
		e, ok := g.edges[k]
		if !ok {
			continue
		}
		if err := insertEdge(tx, e); err != nil {
			g.mu.RUnlock()
			return err
		}
	}
	eventCount := len(g.applied)
	activePurpose, activeProject := g.activePurpose, g.activeProject
	g.mu.RUnlock()

	if err := writeMeta(tx, d.EventID, eventCount, activePurpose, activeProject); err != nil {
		return err
	}
	return tx.Commit()
}

// Rewrite replaces the cache contents with the full graph, used after a
// rebuild.
func (c *Cache) Rewrite(g *Graph, eventCount int, lastEventID string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM nodes`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM edges`); err != nil {
		return err
	}

	g.mu.RLock()
	for _, n := range g.nodes {
		if err := upsertNode(tx, n); err != nil {
			g.mu.RUnlock()
			return err
		}
	}
	for _, e := range g.edges {
		if err := insertEdge(tx, e); err != nil {
			g.mu.RUnlock()
			return err
		}
	}
	activePurpose, activeProject := g.activePurpose, g.activeProject
	g.mu.RUnlock()

	if err := writeMeta(tx, lastEventID, eventCount, activePurpose, activeProject); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *Cache) clear() error {
	stmts := []string{
		`DELETE FROM nodes`,
		`DELETE FROM edges`,
		`DELETE FROM meta`,
		`INSERT INTO meta (key, value) VALUES ('schema_version', '` + schemaVersion + `')`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("reset projection cache: %w", err)
		}
	}
	return nil
}

func upsertNode(tx *sql.Tx, n *types.Node) error {
	_, err := tx.Exec(`
		INSERT INTO nodes (id, type, summary, what, why, domain, origin_event_id,
		                   scope, status, created_at, updated_at, consensus, evidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    summary = excluded.summary,
		    what = excluded.what,
		    why = excluded.why,
		    domain = excluded.domain,
		    status = excluded.status,
		    updated_at = excluded.updated_at,
		    consensus = excluded.consensus,
		    evidence = excluded.evidence`,
		n.ID, string(n.Type), n.Content.Summary, n.Content.Detail.What,
		n.Content.Detail.Why, n.Content.Domain, n.OriginEventID,
		string(n.Scope), string(n.Status), n.CreatedAt.UTC(), n.UpdatedAt.UTC(),
		boolToInt(n.Consensus), boolToInt(n.Evidence))
	if err != nil {
		return fmt.Errorf("upsert node %s: %w", n.ID, err)
	}
	return nil
}

func insertEdge(tx *sql.Tx, e *types.Edge) error {
	_, err := tx.Exec(`
		INSERT INTO edges (source_id, target_id, relation, origin_event_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relation) DO NOTHING`,
		e.SourceID, e.TargetID, string(e.Relation), e.OriginEventID)
	if err != nil {
		return fmt.Errorf("insert edge %s->%s: %w", e.SourceID, e.TargetID, err)
	}
	return nil
}

func writeMeta(tx *sql.Tx, lastEventID string, eventCount int, activePurpose, activeProject string) error {
	pairs := map[string]string{
		"last_event_id":  lastEventID,
		"event_count":    fmt.Sprintf("%d", eventCount),
		"active_purpose": activePurpose,
		"active_project": activeProject,
	}
	for k, v := range pairs {
		if _, err := tx.Exec(`
			INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("write cache meta %s: %w", k, err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
