package rulesls

import (
	"github.com/jward/rulesls/internal/parser"
	"github.com/jward/rulesls/internal/source"
	"github.com/jward/rulesls/internal/symbols"
)

// Resolve returns the declaration the name at (line, col) refers to, or nil.
// A miss is not an error: whitespace, literals and unknown names all resolve
// to nil. Built-in functions resolve to file-less symbols.
func (q *QueryBuilder) Resolve(path string, line, col int) *symbols.Symbol {
	c := q.cursorAt(path, line, col)
	if c == nil {
		return nil
	}
	name := source.ExpandName(c.cur, col)
	if name == "" {
		return nil
	}
	key := symbols.Key(name)
	stack := source.VarStack(c.prefix)

	if len(stack) > 1 {
		typ := q.ws.climbTypeTree(c.fi.Tree, c.scope, stack[:len(stack)-1])
		if typ == nil {
			return nil
		}
		return q.ws.member(typ, key)
	}

	scope := c.scope
	if scope != nil && scope.Kind == symbols.KindType &&
		(parser.IsTypeHeader(c.prefix) || parser.IsBindingTarget(c.prefix)) {
		scope = scope.ParentSymbol()
	}
	if s := q.ws.find(c.fi.Tree, scope, key, nil); s != nil {
		return s
	}
	return parser.Intrinsic(name)
}

// DefinitionAt returns the declaration site of the name at (line, col), or
// nil when it does not resolve to a symbol declared in the workspace.
func (q *QueryBuilder) DefinitionAt(path string, line, col int) *Location {
	return q.LocationOf(q.Resolve(path, line, col))
}

// ImplementationAt returns the implementation a type member is bound to.
func (q *QueryBuilder) ImplementationAt(path string, line, col int) *Location {
	s := q.Resolve(path, line, col)
	if s == nil || !s.InType() {
		return nil
	}
	return q.LocationOf(q.ws.Deref(s.Link))
}
