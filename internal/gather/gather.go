// Package gather assembles bounded context corpora from heterogeneous
// sources: files, grep searches, subprocess output, globs and indexed
// symbols.
//
// The pipeline is plan -> estimate -> chunk -> gather -> render. Estimation
// is advisory and cheap (stat, rg -c); chunking packs sources into
// size-bounded chunks by affinity; gathering fans out through the task
// orchestrator as plain I/O work (never touching the LLM rate limiter) and
// falls back to a sequential loop with identical output when no orchestrator
// is available. Results always come back in plan order.
package gather

import (
	"fmt"
	"time"
)

// SourceType discriminates the gather primitives.
type SourceType string

const (
	SourceFile   SourceType = "file"
	SourceGrep   SourceType = "grep"
	SourceBash   SourceType = "bash"
	SourceGlob   SourceType = "glob"
	SourceSymbol SourceType = "symbol"
)

// DefaultPriority sorts unprioritized sources after explicitly important
// ones without pushing them to the very back.
const DefaultPriority = 100

// Source is one thing to gather. Type decides which of the optional fields
// apply; the constructors below fill Ref so rendering never has to.
type Source struct {
	Type     SourceType `json:"type"`
	Ref      string     `json:"ref"`
	Priority int        `json:"priority,omitempty"`
	Group    string     `json:"group,omitempty"`

	Path         string        `json:"path,omitempty"`          // file; grep scope
	Pattern      string        `json:"pattern,omitempty"`       // grep, glob
	Base         string        `json:"base,omitempty"`          // glob root
	Command      string        `json:"command,omitempty"`       // bash
	Cwd          string        `json:"cwd,omitempty"`           // bash working dir
	Name         string        `json:"name,omitempty"`          // symbol
	MaxMatches   int           `json:"max_matches,omitempty"`   // grep
	ContextLines int           `json:"context_lines,omitempty"` // grep, symbol
	Timeout      time.Duration `json:"timeout,omitempty"`       // bash
}

// FileSource gathers one file's content.
func FileSource(path string) Source {
	return Source{Type: SourceFile, Ref: path, Path: path, Priority: DefaultPriority}
}

// GrepSource gathers search matches under path.
func GrepSource(pattern, path string) Source {
	return Source{
		Type: SourceGrep, Ref: fmt.Sprintf("%s in %s", pattern, path),
		Pattern: pattern, Path: path, Priority: DefaultPriority,
	}
}

// BashSource gathers a command's output.
func BashSource(command string) Source {
	return Source{Type: SourceBash, Ref: command, Command: command, Priority: DefaultPriority}
}

// GlobSource gathers the file listing for a pattern under base.
func GlobSource(pattern, base string) Source {
	return Source{
		Type: SourceGlob, Ref: fmt.Sprintf("%s under %s", pattern, base),
		Pattern: pattern, Base: base, Priority: DefaultPriority,
	}
}

// SymbolSource gathers an indexed symbol's definition with surrounding
// context.
func SymbolSource(name string) Source {
	return Source{Type: SourceSymbol, Ref: name, Name: name, Priority: DefaultPriority}
}

// Plan is the caller-produced input to Gather.
type Plan struct {
	Operation string   `json:"operation"`
	Intent    string   `json:"intent,omitempty"`
	Sources   []Source `json:"sources"`
	SizeLimit int64    `json:"size_limit,omitempty"`
}

// Result is what one source produced. Failures live in Error; a failed
// source never fails the plan.
type Result struct {
	Source   Source        `json:"source"`
	Content  string        `json:"content,omitempty"`
	Size     int           `json:"size"`
	Lines    int           `json:"lines"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// OK reports whether the source gathered cleanly.
func (r *Result) OK() bool { return r.Error == "" }

// Chunk is a size-bounded subset of a plan's sources, in gather order.
// Indices point back at the plan's source positions so flat results can be
// restored to plan order.
type Chunk struct {
	Sources   []Source
	Indices   []int
	Estimated int64
}
