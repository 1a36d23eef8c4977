package splitter

import (
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/dshills/codeindexer/pkg/types"
)

// splitGo parses Go source and returns chunkable node spans: top-level
// functions and methods, struct types, and interface types. Syntax errors are
// non-fatal as long as a partial AST is produced; a nil AST reports the parse
// error and the caller falls back to the window splitter.
func splitGo(source, filePath string) ([]node, error) {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, filePath, source, parser.ParseComments|parser.SkipObjectResolution)
	if file == nil {
		return nil, err
	}

	var nodes []node

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			nodes = append(nodes, node{
				startLine: fset.Position(d.Pos()).Line,
				endLine:   fset.Position(d.End()).Line,
				nodeType:  types.NodeMethod,
				nodeName:  d.Name.Name,
			})
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}

				var nodeType types.NodeType
				switch typeSpec.Type.(type) {
				case *ast.StructType:
					nodeType = types.NodeClass
				case *ast.InterfaceType:
					nodeType = types.NodeInterface
				default:
					continue
				}

				nodes = append(nodes, node{
					startLine: fset.Position(spec.Pos()).Line,
					endLine:   fset.Position(spec.End()).Line,
					nodeType:  nodeType,
					nodeName:  typeSpec.Name.Name,
				})
			}
		}
	}

	return nodes, nil
}
