// Package symbols builds and queries a language-agnostic symbol index.
//
// The index maps source files to the symbols they declare (functions,
// methods, classes, markdown sections) and keys each file by a content hash
// so incremental updates re-extract only what changed. Go files go through
// the real parser; everything else goes through per-language patterns
// declared in languages.toml, so adding a language is a config change, not a
// code change.
package symbols

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/babelhq/babel/internal/types"
)

//go:embed languages.toml
var defaultLanguagesTOML []byte

// Extractor kinds understood by the indexer.
const (
	ExtractorAST      = "ast"
	ExtractorRegex    = "regex"
	ExtractorMarkdown = "markdown"
)

// PatternConfig is one line-oriented extraction rule for a regex language.
// Each regex must have two capture groups: leading indentation and the
// symbol name.
type PatternConfig struct {
	Kind  string `toml:"kind"`
	Regex string `toml:"regex"`

	re *regexp.Regexp
}

// LanguageConfig describes how one language is indexed.
type LanguageConfig struct {
	Name          string          `toml:"name"`
	Extensions    []string        `toml:"extensions"`
	Extractor     string          `toml:"extractor"`
	PrivatePrefix string          `toml:"private_prefix"`
	Patterns      []PatternConfig `toml:"patterns"`
}

type languagesFile struct {
	Languages []LanguageConfig `toml:"language"`
}

// Registry maps file extensions to language configs. Safe for concurrent
// reads; Register is expected at setup time.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*LanguageConfig
	byExt  map[string]*LanguageConfig
}

// DefaultRegistry parses the embedded language table. The embedded config is
// validated by tests, so a failure here is a build defect.
func DefaultRegistry() *Registry {
	r, err := ParseRegistry(defaultLanguagesTOML)
	if err != nil {
		panic(fmt.Sprintf("symbols: embedded languages.toml invalid: %v", err))
	}
	return r
}

// ParseRegistry builds a registry from TOML bytes.
func ParseRegistry(data []byte) (*Registry, error) {
	var f languagesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("toml: %w", err)
	}
	r := &Registry{
		byName: make(map[string]*LanguageConfig),
		byExt:  make(map[string]*LanguageConfig),
	}
	for i := range f.Languages {
		if err := r.Register(&f.Languages[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadRegistry reads a languages.toml from disk and layers it over the
// embedded defaults. Languages with the same name replace the default entry.
func LoadRegistry(path string) (*Registry, error) {
	r := DefaultRegistry()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f languagesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range f.Languages {
		if err := r.Register(&f.Languages[i]); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return r, nil
}

// Register adds or replaces a language. Patterns are compiled here so a bad
// regex surfaces at load time, not mid-index.
func (r *Registry) Register(cfg *LanguageConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("language with no name")
	}
	switch cfg.Extractor {
	case ExtractorAST, ExtractorRegex, ExtractorMarkdown:
	default:
		return fmt.Errorf("language %s: unknown extractor %q", cfg.Name, cfg.Extractor)
	}
	for i := range cfg.Patterns {
		re, err := regexp.Compile(cfg.Patterns[i].Regex)
		if err != nil {
			return fmt.Errorf("language %s: pattern %d: %w", cfg.Name, i, err)
		}
		if re.NumSubexp() < 2 {
			return fmt.Errorf("language %s: pattern %d: needs indent and name groups", cfg.Name, i)
		}
		cfg.Patterns[i].re = re
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byName[cfg.Name]; ok {
		for _, ext := range old.Extensions {
			delete(r.byExt, ext)
		}
	}
	r.byName[cfg.Name] = cfg
	for _, ext := range cfg.Extensions {
		r.byExt[strings.ToLower(ext)] = cfg
	}
	return nil
}

// ForPath returns the language config matching a path's extension.
func (r *Registry) ForPath(path string) (*LanguageConfig, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.byExt[ext]
	return cfg, ok
}

// Language returns a config by name.
func (r *Registry) Language(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.byName[name]
	return cfg, ok
}

// Names lists registered languages, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// visibility classifies a name using the language's private prefix. Go names
// are classified in the AST extractor instead.
func (cfg *LanguageConfig) visibility(name string) types.Visibility {
	if cfg.PrivatePrefix != "" && strings.HasPrefix(name, cfg.PrivatePrefix) {
		return types.VisibilityPrivate
	}
	return types.VisibilityPublic
}
