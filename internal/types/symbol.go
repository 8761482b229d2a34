package types

import "strings"

// SymbolType classifies extracted code symbols. The document/section kinds
// come from markdown extraction; the rest from language extractors.
type SymbolType string

const (
	SymbolClass      SymbolType = "class"
	SymbolFunction   SymbolType = "function"
	SymbolMethod     SymbolType = "method"
	SymbolInterface  SymbolType = "interface"
	SymbolTypeDef    SymbolType = "type"
	SymbolEnum       SymbolType = "enum"
	SymbolDocument   SymbolType = "document"
	SymbolSection    SymbolType = "section"
	SymbolSubsection SymbolType = "subsection"
	SymbolID         SymbolType = "id"
	SymbolVariable   SymbolType = "variable"
	SymbolAnimation  SymbolType = "animation"
)

// Visibility of a symbol, classified by the language config's heuristic.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Symbol is one extracted declaration, uniquely keyed by
// (FilePath, QualifiedName).
type Symbol struct {
	Type          SymbolType `json:"symbol_type"`
	Name          string     `json:"name"`
	QualifiedName string     `json:"qualified_name"`
	FilePath      string     `json:"file_path"`
	LineStart     int        `json:"line_start"`
	LineEnd       int        `json:"line_end"`
	Signature     string     `json:"signature,omitempty"`
	Docstring     string     `json:"docstring,omitempty"`
	ParentSymbol  string     `json:"parent_symbol,omitempty"`
	Visibility    Visibility `json:"visibility,omitempty"`
	GitHash       string     `json:"git_hash,omitempty"`
}

// Key returns the unique identity of the symbol within an index.
func (s *Symbol) Key() string {
	return s.FilePath + "\x00" + s.QualifiedName
}

// SimpleName returns the last path element of the qualified name, which is
// what users type in queries.
func (s *Symbol) SimpleName() string {
	if i := strings.LastIndex(s.QualifiedName, "."); i >= 0 {
		return s.QualifiedName[i+1:]
	}
	return s.QualifiedName
}
