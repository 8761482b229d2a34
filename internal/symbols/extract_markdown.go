package symbols

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/babelhq/babel/internal/types"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	// Bracketed requirement-style identifiers, e.g. [REQ-104] or [ADR-7].
	tagRe = regexp.MustCompile(`\[([A-Z][A-Z0-9]{0,15}-\d+)\]`)
)

// extractMarkdown turns headings into document/section/subsection symbols
// and bracketed [TAG-123] identifiers into id symbols, so design docs are
// addressable the same way code is.
func extractMarkdown(src []byte) []types.Symbol {
	lines := strings.Split(string(src), "\n")

	type heading struct {
		level int
		index int // position in out
	}
	var out []types.Symbol
	var open []heading // heading stack, outermost first
	seen := map[string]int{}
	inFence := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			name := strings.TrimSpace(m[2])

			// Close headings at the same or deeper level.
			for len(open) > 0 && open[len(open)-1].level >= level {
				top := open[len(open)-1]
				out[top.index].LineEnd = i
				open = open[:len(open)-1]
			}

			parent := ""
			qualified := name
			if len(open) > 0 {
				parent = out[open[len(open)-1].index].Name
				qualified = out[open[len(open)-1].index].QualifiedName + "." + name
			}
			// Repeated headings ("Examples" under several sections sharing
			// a parent) must stay unique within the file.
			seen[qualified]++
			if n := seen[qualified]; n > 1 {
				qualified = fmt.Sprintf("%s (%d)", qualified, n)
			}

			out = append(out, types.Symbol{
				Type:          headingType(level),
				Name:          name,
				QualifiedName: qualified,
				LineStart:     i + 1,
				LineEnd:       len(lines),
				ParentSymbol:  parent,
				Visibility:    types.VisibilityPublic,
			})
			open = append(open, heading{level: level, index: len(out) - 1})
		}

		for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
			tag := m[1]
			key := "id:" + tag
			seen[key]++
			if seen[key] > 1 {
				continue // first occurrence defines the tag
			}
			parent := ""
			if len(open) > 0 {
				parent = out[open[len(open)-1].index].Name
			}
			out = append(out, types.Symbol{
				Type:          types.SymbolID,
				Name:          tag,
				QualifiedName: tag,
				LineStart:     i + 1,
				LineEnd:       i + 1,
				ParentSymbol:  parent,
				Visibility:    types.VisibilityPublic,
			})
		}
	}
	return out
}

func headingType(level int) types.SymbolType {
	switch level {
	case 1:
		return types.SymbolDocument
	case 2:
		return types.SymbolSection
	default:
		return types.SymbolSubsection
	}
}
