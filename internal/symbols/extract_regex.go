package symbols

import (
	"strings"

	"github.com/babelhq/babel/internal/types"
)

// scopeEntry is an open block while scanning: a class or function whose
// body is still being read. Indentation decides when a scope closes.
type scopeEntry struct {
	indent int
	name   string
	kind   types.SymbolType
}

// extractRegex runs the language's line patterns over the file. It is
// deliberately dumb: no parsing, just indentation tracking so a def inside a
// class becomes a method. Good enough for navigation, cheap enough to run on
// every save.
func extractRegex(cfg *LanguageConfig, src []byte) []types.Symbol {
	lines := strings.Split(string(src), "\n")

	var out []types.Symbol
	var indents []int
	var scopes []scopeEntry

	for i, line := range lines {
		for _, pat := range cfg.Patterns {
			m := pat.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			indent := indentWidth(m[1])
			name := m[2]

			// Close any scope at the same or deeper indentation.
			for len(scopes) > 0 && scopes[len(scopes)-1].indent >= indent {
				scopes = scopes[:len(scopes)-1]
			}

			kind := types.SymbolType(pat.Kind)
			qualified := name
			parent := ""
			if cls := enclosingClass(scopes); cls != "" {
				parent = cls
				qualified = cls + "." + name
				if kind == types.SymbolFunction {
					kind = types.SymbolMethod
				}
			}

			out = append(out, types.Symbol{
				Type:          kind,
				Name:          name,
				QualifiedName: qualified,
				LineStart:     i + 1,
				Signature:     strings.TrimRight(strings.TrimSpace(line), ":{ "),
				Docstring:     probeDocstring(lines, i),
				ParentSymbol:  parent,
				Visibility:    cfg.visibility(name),
			})
			indents = append(indents, indent)
			scopes = append(scopes, scopeEntry{indent: indent, name: name, kind: kind})
			break
		}
	}

	// A symbol's body ends where the next symbol at the same or shallower
	// indentation begins.
	for i := range out {
		out[i].LineEnd = len(lines)
		for j := i + 1; j < len(out); j++ {
			if indents[j] <= indents[i] {
				out[i].LineEnd = out[j].LineStart - 1
				break
			}
		}
		if out[i].LineEnd < out[i].LineStart {
			out[i].LineEnd = out[i].LineStart
		}
	}
	return out
}

func enclosingClass(scopes []scopeEntry) string {
	for i := len(scopes) - 1; i >= 0; i-- {
		if scopes[i].kind == types.SymbolClass {
			return scopes[i].name
		}
	}
	return ""
}

// indentWidth counts leading whitespace with tabs as four columns, matching
// how mixed-indent Python files usually line up.
func indentWidth(ws string) int {
	w := 0
	for _, r := range ws {
		if r == '\t' {
			w += 4
		} else {
			w++
		}
	}
	return w
}

// probeDocstring looks for a summary line near a declaration: a Python
// triple-quoted string on the following line, or a JSDoc block ending just
// above. Returns the first sentence line, or "".
func probeDocstring(lines []string, declLine int) string {
	// Following line: python style.
	for i := declLine + 1; i < len(lines) && i <= declLine+2; i++ {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}
		for _, q := range []string{`"""`, "'''"} {
			if strings.HasPrefix(t, q) {
				t = strings.TrimPrefix(t, q)
				t = strings.TrimSuffix(t, q)
				return strings.TrimSpace(t)
			}
		}
		break
	}
	// Preceding lines: JSDoc style, closing */ directly above.
	if declLine > 0 && strings.HasSuffix(strings.TrimSpace(lines[declLine-1]), "*/") {
		for i := declLine - 1; i >= 0 && i >= declLine-20; i-- {
			t := strings.TrimSpace(lines[i])
			if strings.HasPrefix(t, "/**") || strings.HasPrefix(t, "/*") {
				for j := i; j < declLine; j++ {
					s := strings.Trim(strings.TrimSpace(lines[j]), "/* ")
					if s != "" {
						return s
					}
				}
				return ""
			}
		}
	}
	return ""
}
