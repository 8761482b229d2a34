package symbols

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/babelhq/babel/internal/types"
)

// extractGo walks a parsed Go file and emits one symbol per top-level
// declaration. Methods are qualified by their receiver type so Store.Get and
// Cache.Get stay distinct.
func extractGo(path string, src []byte) ([]types.Symbol, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	var out []types.Symbol
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			out = append(out, goFunc(fset, d))
		case *ast.GenDecl:
			out = append(out, goGenDecl(fset, d)...)
		}
	}
	for i := range out {
		out[i].FilePath = path
	}
	return out, nil
}

func goFunc(fset *token.FileSet, d *ast.FuncDecl) types.Symbol {
	name := d.Name.Name
	qualified := name
	symType := types.SymbolFunction
	parent := ""
	if d.Recv != nil && len(d.Recv.List) > 0 {
		if recv := receiverTypeName(d.Recv.List[0].Type); recv != "" {
			qualified = recv + "." + name
			symType = types.SymbolMethod
			parent = recv
		}
	}
	return types.Symbol{
		Type:          symType,
		Name:          name,
		QualifiedName: qualified,
		LineStart:     fset.Position(d.Pos()).Line,
		LineEnd:       fset.Position(d.End()).Line,
		Signature:     goSignature(fset, d),
		Docstring:     docFirstLine(d.Doc),
		ParentSymbol:  parent,
		Visibility:    goVisibility(name),
	}
}

func goGenDecl(fset *token.FileSet, d *ast.GenDecl) []types.Symbol {
	var out []types.Symbol
	for _, spec := range d.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			symType := types.SymbolTypeDef
			switch s.Type.(type) {
			case *ast.StructType:
				symType = types.SymbolClass
			case *ast.InterfaceType:
				symType = types.SymbolInterface
			}
			doc := s.Doc
			if doc == nil {
				doc = d.Doc
			}
			out = append(out, types.Symbol{
				Type:          symType,
				Name:          s.Name.Name,
				QualifiedName: s.Name.Name,
				LineStart:     fset.Position(s.Pos()).Line,
				LineEnd:       fset.Position(s.End()).Line,
				Docstring:     docFirstLine(doc),
				Visibility:    goVisibility(s.Name.Name),
			})
		case *ast.ValueSpec:
			// Exported package-level consts and vars only. Unexported
			// values are implementation detail and would swamp queries.
			for _, ident := range s.Names {
				if ident.Name == "_" || goVisibility(ident.Name) != types.VisibilityPublic {
					continue
				}
				symType := types.SymbolVariable
				if d.Tok == token.CONST {
					symType = types.SymbolEnum
				}
				doc := s.Doc
				if doc == nil {
					doc = d.Doc
				}
				out = append(out, types.Symbol{
					Type:          symType,
					Name:          ident.Name,
					QualifiedName: ident.Name,
					LineStart:     fset.Position(ident.Pos()).Line,
					LineEnd:       fset.Position(s.End()).Line,
					Docstring:     docFirstLine(doc),
					Visibility:    types.VisibilityPublic,
				})
			}
		}
	}
	return out
}

// receiverTypeName unwraps the receiver expression down to its type name,
// handling pointers and generic type parameters.
func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	}
	return ""
}

// goSignature renders the declaration without its body, collapsed to one
// line.
func goSignature(fset *token.FileSet, d *ast.FuncDecl) string {
	header := *d
	header.Body = nil
	header.Doc = nil
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, &header); err != nil {
		return ""
	}
	return strings.Join(strings.Fields(buf.String()), " ")
}

func goVisibility(name string) types.Visibility {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return types.VisibilityPublic
	}
	return types.VisibilityPrivate
}

// docFirstLine returns the first line of a doc comment, which is the
// sentence Go convention puts the summary in.
func docFirstLine(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	text := strings.TrimSpace(doc.Text())
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return text
}
