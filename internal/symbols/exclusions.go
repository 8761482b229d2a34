package symbols

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Exclusions decides which paths the indexer skips. Three layers: patterns
// every language shares (VCS internals, build output), per-language noise
// (node_modules, __pycache__, minified bundles), and test files, which are
// excluded by default but can be kept. One registry, one access point, so a
// policy change lands in exactly one place.
type Exclusions struct {
	mu       sync.RWMutex
	common   []string
	byLang   map[string][]string
	tests    []string
}

// NewExclusions returns the default registry.
func NewExclusions() *Exclusions {
	return &Exclusions{
		common: []string{
			"**/.git/**",
			"**/.hg/**",
			"**/.svn/**",
			"**/.babel/**",
			"**/vendor/**",
			"**/dist/**",
			"**/build/**",
			"**/target/**",
			"**/*.log",
		},
		byLang: map[string][]string{
			"python": {
				"**/__pycache__/**",
				"**/.venv/**",
				"**/venv/**",
				"**/*.egg-info/**",
			},
			"javascript": {
				"**/node_modules/**",
				"**/*.min.js",
				"**/*.bundle.js",
				"**/coverage/**",
			},
			"go": {
				"**/testdata/**",
			},
		},
		tests: []string{
			"**/*_test.go",
			"**/test_*.py",
			"**/*_test.py",
			"**/*.test.js",
			"**/*.test.ts",
			"**/*.spec.js",
			"**/*.spec.ts",
		},
	}
}

// Add appends patterns to one language's exclusion list ("" for common).
func (e *Exclusions) Add(lang string, patterns ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if lang == "" {
		e.common = append(e.common, patterns...)
		return
	}
	e.byLang[lang] = append(e.byLang[lang], patterns...)
}

// Patterns is the single read path: the effective exclusion set for a
// language, with or without the test patterns.
func (e *Exclusions) Patterns(lang string, includeTests bool) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := append([]string(nil), e.common...)
	out = append(out, e.byLang[lang]...)
	if !includeTests {
		out = append(out, e.tests...)
	}
	return out
}

// Excluded reports whether a path (relative, slash-separated) is skipped for
// the given language.
func (e *Exclusions) Excluded(path, lang string, includeTests bool) bool {
	path = filepath.ToSlash(path)
	// Patterns anchor at any depth; a bare relative path still matches the
	// leading **/ via the path itself.
	for _, pat := range e.Patterns(lang, includeTests) {
		if ok, _ := doublestar.Match(pat, path); ok {
			return true
		}
		if trimmed := strings.TrimPrefix(pat, "**/"); trimmed != pat {
			if ok, _ := doublestar.Match(trimmed, path); ok {
				return true
			}
		}
	}
	return false
}
