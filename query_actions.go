package rulesls

import (
	"fmt"
	"strings"

	"github.com/jward/rulesls/internal/symbols"
)

// CodeAction is a quick fix offered for a range of lines.
type CodeAction struct {
	Title string
	Edits map[string][]TextEdit
}

// CodeActions returns the fixes available for lines startLine..endLine
// (0-based) of path. When the range touches a type whose method bindings do
// not resolve, one action adds a stub implementation for each of them right
// after the type.
func (q *QueryBuilder) CodeActions(path string, startLine, endLine int) []CodeAction {
	fi := q.ws.files[path]
	if fi == nil {
		return nil
	}
	typ := fi.Tree.InnerScope(startLine + 1)
	if typ == nil || typ.Kind != symbols.KindType {
		return nil
	}
	missing := q.unboundMethods(typ)
	if len(missing) == 0 {
		return nil
	}
	touched := startLine <= typ.StartLine-1 && typ.StartLine-1 <= endLine
	for _, m := range missing {
		if startLine <= m.StartLine-1 && m.StartLine-1 <= endLine {
			touched = true
		}
	}
	if !touched {
		return nil
	}

	header := fi.File.Line(typ.StartLine - 1)
	indent := header[:len(header)-len(strings.TrimLeft(header, " \t"))]
	var sb strings.Builder
	seen := make(map[string]bool)
	for _, m := range missing {
		key := symbols.Key(m.BindName)
		if seen[key] {
			continue
		}
		seen[key] = true
		fmt.Fprintf(&sb, "\n%ssubroutine %s(self)\n%send subroutine\n", indent, m.BindName, indent)
	}
	return []CodeAction{{
		Title: fmt.Sprintf("Implement missing bindings of %s", typ.Name),
		Edits: map[string][]TextEdit{
			path: {{Span: Span{Line: typ.EndLine}, NewText: sb.String()}},
		},
	}}
}

// unboundMethods returns the methods of typ whose implementation does not
// resolve, in declaration order.
func (q *QueryBuilder) unboundMethods(typ *symbols.Symbol) []*symbols.Symbol {
	var out []*symbols.Symbol
	for _, c := range typ.Tree().ChildrenOf(typ) {
		if c.Kind == symbols.KindMethod && q.ws.Deref(c.Link) == nil {
			out = append(out, c)
		}
	}
	return out
}
