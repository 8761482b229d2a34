package symbols

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/babelhq/babel/internal/debug"
	"github.com/babelhq/babel/internal/refs"
	"github.com/babelhq/babel/internal/types"
)

var (
	// ErrFileTooLarge rejects files over the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds symbol size limit")
	// ErrUnsupportedLanguage marks files no registered language claims.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrParseFailed marks files the extractor could not read. Never fatal
	// for a batch run; the file just contributes no symbols.
	ErrParseFailed = errors.New("parse failed")
)

// DefaultMaxFileSize bounds what the extractors will read. Generated
// bundles and vendored blobs past this size are noise, not symbols.
const DefaultMaxFileSize = 1 << 20

// Option configures an Index.
type Option func(*Index)

// WithRegistry replaces the embedded language table.
func WithRegistry(r *Registry) Option { return func(ix *Index) { ix.reg = r } }

// WithExclusions replaces the default exclusion registry.
func WithExclusions(e *Exclusions) Option { return func(ix *Index) { ix.excl = e } }

// WithHasher replaces the content hasher, typically with a git blob hasher.
func WithHasher(h HashFunc) Option { return func(ix *Index) { ix.hash = h } }

// WithMaxFileSize overrides the per-file size limit.
func WithMaxFileSize(n int64) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.maxFileSize = n
		}
	}
}

// WithTests includes test files, which the exclusion registry drops by
// default.
func WithTests(include bool) Option { return func(ix *Index) { ix.includeTests = include } }

// Index is the symbol index for one project tree. All paths are stored
// slash-separated and relative to the root.
type Index struct {
	root         string
	disk         diskCache
	reg          *Registry
	excl         *Exclusions
	hash         HashFunc
	maxFileSize  int64
	includeTests bool

	mu    sync.RWMutex
	files map[string]fileEntry
}

// Stats summarizes one indexing pass.
type Stats struct {
	Scanned   int // candidate files visited
	Extracted int // files re-extracted
	Unchanged int // files skipped because the hash matched
	Removed   int // entries dropped for deleted files
	Failed    int // files skipped on parse or size errors
}

// New builds an index rooted at a project directory, persisting to
// cachePath.
func New(root, cachePath string, opts ...Option) *Index {
	ix := &Index{
		root:        root,
		disk:        diskCache{path: cachePath},
		reg:         DefaultRegistry(),
		excl:        NewExclusions(),
		hash:        ContentHash,
		maxFileSize: DefaultMaxFileSize,
		files:       map[string]fileEntry{},
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Load warm-starts the index from the disk cache.
func (ix *Index) Load() {
	files := ix.disk.load()
	ix.mu.Lock()
	ix.files = files
	ix.mu.Unlock()
}

// Save persists the index.
func (ix *Index) Save() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.disk.save(ix.files)
}

// Counts returns how many files and symbols the index holds.
func (ix *Index) Counts() (files, symbols int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, entry := range ix.files {
		symbols += len(entry.Symbols)
	}
	return len(ix.files), symbols
}

// IndexAll scans the whole tree and re-extracts anything whose content hash
// moved. Entries for files that no longer exist are dropped.
func (ix *Index) IndexAll(ctx context.Context) (Stats, error) {
	candidates, err := ix.scan(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats, err := ix.Update(ctx, candidates)
	if err != nil {
		return stats, err
	}

	live := make(map[string]bool, len(candidates))
	for _, rel := range candidates {
		live[rel] = true
	}
	ix.mu.Lock()
	for rel := range ix.files {
		if !live[rel] {
			delete(ix.files, rel)
			stats.Removed++
		}
	}
	ix.mu.Unlock()
	return stats, nil
}

// Update re-indexes the given paths (relative to root or absolute under it).
// Unchanged files are skipped by hash; deleted files fall out of the index.
// Per-file extraction failures are logged and counted, never fatal.
func (ix *Index) Update(ctx context.Context, paths []string) (Stats, error) {
	var stats Stats
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rel, ok := ix.relative(path)
		if !ok {
			continue
		}
		stats.Scanned++

		entry, err := ix.extractFile(rel)
		switch {
		case err == nil:
		case os.IsNotExist(err):
			ix.mu.Lock()
			if _, had := ix.files[rel]; had {
				delete(ix.files, rel)
				stats.Removed++
			}
			ix.mu.Unlock()
			continue
		case errors.Is(err, errUnchanged):
			stats.Unchanged++
			continue
		case errors.Is(err, ErrUnsupportedLanguage), errors.Is(err, errExcluded):
			continue
		default:
			// Too large or unparseable. Whatever we extracted before no
			// longer describes the file.
			debug.Logf("symbols: skip %s: %v\n", rel, err)
			ix.mu.Lock()
			delete(ix.files, rel)
			ix.mu.Unlock()
			stats.Failed++
			continue
		}

		ix.mu.Lock()
		ix.files[rel] = entry
		ix.mu.Unlock()
		stats.Extracted++
	}
	return stats, nil
}

// errUnchanged short-circuits extraction when the cached hash still matches.
var errUnchanged = errors.New("unchanged")

// errExcluded marks paths the exclusion registry filters out.
var errExcluded = errors.New("excluded")

func (ix *Index) extractFile(rel string) (fileEntry, error) {
	cfg, ok := ix.reg.ForPath(rel)
	if !ok {
		return fileEntry{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, rel)
	}
	if ix.excl.Excluded(rel, cfg.Name, ix.includeTests) {
		return fileEntry{}, fmt.Errorf("%w: %s", errExcluded, rel)
	}
	abs := filepath.Join(ix.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return fileEntry{}, err
	}
	if info.Size() > ix.maxFileSize {
		return fileEntry{}, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, rel, info.Size())
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return fileEntry{}, err
	}

	hash := ix.hash(rel, content)
	ix.mu.RLock()
	prior, had := ix.files[rel]
	ix.mu.RUnlock()
	if had && prior.Hash == hash {
		return fileEntry{}, errUnchanged
	}

	var syms []types.Symbol
	switch cfg.Extractor {
	case ExtractorAST:
		syms, err = extractGo(rel, content)
		if err != nil {
			return fileEntry{}, err
		}
	case ExtractorRegex:
		syms = extractRegex(cfg, content)
	case ExtractorMarkdown:
		syms = extractMarkdown(content)
	}
	for i := range syms {
		syms[i].FilePath = rel
		syms[i].GitHash = hash
	}
	return fileEntry{Hash: hash, Symbols: syms}, nil
}

// scan walks the tree and returns every supported, non-excluded file.
func (ix *Index) scan(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == ix.root {
				return nil
			}
			if strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, ok := ix.relative(path)
		if !ok {
			return nil
		}
		cfg, supported := ix.reg.ForPath(rel)
		if !supported {
			return nil
		}
		if ix.excl.Excluded(rel, cfg.Name, ix.includeTests) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("symbols: scan %s: %w", ix.root, err)
	}
	sort.Strings(out)
	return out, nil
}

// relative normalizes a path to the slash-separated root-relative form used
// as the index key. Paths outside the root are rejected.
func (ix *Index) relative(path string) (string, bool) {
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(ix.root, path)
		if err != nil || strings.HasPrefix(r, "..") {
			return "", false
		}
		path = r
	}
	return filepath.ToSlash(filepath.Clean(path)), true
}

// Symbols returns the indexed symbols for one file, in declaration order.
func (ix *Index) Symbols(path string) []types.Symbol {
	rel, ok := ix.relative(path)
	if !ok {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	entry, ok := ix.files[rel]
	if !ok {
		return nil
	}
	out := make([]types.Symbol, len(entry.Symbols))
	copy(out, entry.Symbols)
	return out
}

// Match is one query hit.
type Match struct {
	Symbol types.Symbol
	Score  float64
}

// Query ranks indexed symbols against a free-text query. An exact qualified
// or simple name beats token overlap; ties break on name then path so output
// is stable. kind narrows to one symbol type; limit <= 0 returns everything
// that scored.
func (ix *Index) Query(query string, kind types.SymbolType, limit int) []Match {
	queryTokens := refs.Tokenize(query)
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if queryLower == "" {
		return nil
	}

	ix.mu.RLock()
	var matches []Match
	for _, entry := range ix.files {
		for _, sym := range entry.Symbols {
			if kind != "" && sym.Type != kind {
				continue
			}
			score := matchScore(&sym, queryLower, queryTokens)
			if score <= 0 {
				continue
			}
			matches = append(matches, Match{Symbol: sym, Score: score})
		}
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Symbol.QualifiedName != matches[j].Symbol.QualifiedName {
			return matches[i].Symbol.QualifiedName < matches[j].Symbol.QualifiedName
		}
		return matches[i].Symbol.FilePath < matches[j].Symbol.FilePath
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func matchScore(sym *types.Symbol, queryLower string, queryTokens []string) float64 {
	if strings.EqualFold(sym.QualifiedName, queryLower) {
		return 2.0
	}
	if strings.EqualFold(sym.SimpleName(), queryLower) {
		return 1.5
	}
	if len(queryTokens) == 0 {
		return 0
	}
	nameTokens := refs.Tokenize(sym.QualifiedName)
	var total float64
	for _, qt := range queryTokens {
		best := 0.0
		for _, nt := range nameTokens {
			if s := refs.Score(qt, nt); s > best {
				best = s
			}
		}
		total += best
	}
	return total / float64(len(queryTokens))
}

// Lookup resolves a name to its best single definition: exact qualified
// match first, then exact simple name, public symbols before private ones.
func (ix *Index) Lookup(name string) (types.Symbol, bool) {
	matches := ix.Query(name, "", 0)
	var candidates []Match
	for _, m := range matches {
		if m.Score >= 1.5 {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return types.Symbol{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		pi := candidates[i].Symbol.Visibility == types.VisibilityPublic
		pj := candidates[j].Symbol.Visibility == types.VisibilityPublic
		if pi != pj {
			return pi
		}
		return candidates[i].Symbol.FilePath < candidates[j].Symbol.FilePath
	})
	return candidates[0].Symbol, true
}
