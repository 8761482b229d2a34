package gather

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Category classifies what a babel subcommand does when invoked from a
// gather plan.
type Category string

const (
	// CategorySafe commands only read; they may run in parallel gather.
	CategorySafe Category = "SAFE"
	// CategoryMutation commands write to journals or caches.
	CategoryMutation Category = "MUTATION"
	// CategoryLLMHeavy commands can consume LLM quota.
	CategoryLLMHeavy Category = "LLM_HEAVY"
	// CategoryInteractive commands prompt and would hang a worker.
	CategoryInteractive Category = "INTERACTIVE"
)

// SafetyViolation rejects a command the gate will not run in parallel. The
// message is structured so callers can show category and remedy verbatim.
type SafetyViolation struct {
	Command    string
	Subcommand string
	Category   Category
}

func (v *SafetyViolation) Error() string {
	return fmt.Sprintf(
		"safety gate rejected %q: `babel %s` is %s; parallel gather runs SAFE babel commands only (run it directly instead)",
		v.Command, v.Subcommand, v.Category,
	)
}

// Safety is the one registry deciding which babel invocations a gather plan
// may execute. Policy changes land here and nowhere else.
type Safety struct {
	mu         sync.RWMutex
	categories map[string]Category
}

// NewSafety returns the default classification for babel's command set.
func NewSafety() *Safety {
	return &Safety{
		categories: map[string]Category{
			"status":    CategorySafe,
			"why":       CategorySafe,
			"log":       CategorySafe,
			"version":   CategorySafe,
			"init":      CategoryMutation,
			"capture":   CategoryMutation,
			"commit":    CategoryMutation,
			"sync":      CategoryMutation,
			"index":     CategoryMutation,
			"memo":      CategoryMutation,
			"reject":    CategoryMutation,
			"resolve":   CategoryMutation,
			"challenge": CategoryMutation,
			"endorse":   CategoryMutation,
			"evidence":  CategoryMutation,
			"link":      CategoryMutation,
			"topic":     CategoryMutation,
			"confirm":   CategoryInteractive,
			"gather":    CategoryLLMHeavy,
			"extract":   CategoryLLMHeavy,
		},
	}
}

// Classify returns a subcommand's category. Unknown subcommands classify as
// MUTATION: the gate fails closed.
func (s *Safety) Classify(subcommand string) Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cat, ok := s.categories[subcommand]; ok {
		return cat
	}
	return CategoryMutation
}

// Set overrides one subcommand's category.
func (s *Safety) Set(subcommand string, cat Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[subcommand] = cat
}

// Categories returns a copy of the full table, for introspection.
func (s *Safety) Categories() map[string]Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Category, len(s.categories))
	for k, v := range s.categories {
		out[k] = v
	}
	return out
}

// Known lists classified subcommands, sorted.
func (s *Safety) Known() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.categories))
	for k := range s.categories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Check inspects a shell command before parallel execution. Non-babel
// commands pass; babel invocations must be SAFE.
func (s *Safety) Check(command string) error {
	sub, isBabel := babelSubcommand(command)
	if !isBabel {
		return nil
	}
	cat := s.Classify(sub)
	if cat == CategorySafe {
		return nil
	}
	return &SafetyViolation{Command: command, Subcommand: sub, Category: cat}
}

// babelSubcommand pulls the subcommand out of a shell command line when the
// program is babel (bare or by path). Quoting subtleties do not matter here;
// the gate only needs the program word and the first non-flag argument.
func babelSubcommand(command string) (string, bool) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", false
	}
	prog := filepath.Base(fields[0])
	if prog != "babel" {
		return "", false
	}
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, "-") {
			continue
		}
		return f, true
	}
	return "", true // bare `babel` falls through to Classify("") -> MUTATION
}
