package rulesls

import (
	"github.com/jward/rulesls/internal/symbols"
)

// Ancestors returns the parent types of typ, nearest first. Inheritance
// cycles are cut at the first repeated type.
func (w *Workspace) Ancestors(typ *symbols.Symbol) []*symbols.Symbol {
	if typ == nil || typ.Kind != symbols.KindType {
		return nil
	}
	seen := map[*symbols.Symbol]bool{typ: true}
	var out []*symbols.Symbol
	for t := w.Deref(typ.Inherit); t != nil && !seen[t]; t = w.Deref(t.Inherit) {
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Overridden returns the members that member overrides: the same-named
// members of its type's ancestors, nearest first. Members outside a type
// override nothing.
func (w *Workspace) Overridden(member *symbols.Symbol) []*symbols.Symbol {
	if member == nil || !member.InType() {
		return nil
	}
	var out []*symbols.Symbol
	for _, anc := range w.Ancestors(member.ParentSymbol()) {
		if c := anc.Tree().Child(anc, member.Key()); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// TypeHierarchy is the inheritance view of one type.
type TypeHierarchy struct {
	Type      *symbols.Symbol
	Ancestors []*symbols.Symbol
	// Derived lists the types anywhere in the workspace that extend Type
	// directly, in path order.
	Derived []*symbols.Symbol
}

// TypeHierarchy returns the hierarchy of typ, or nil when typ is not a type.
func (q *QueryBuilder) TypeHierarchy(typ *symbols.Symbol) *TypeHierarchy {
	if typ == nil || typ.Kind != symbols.KindType {
		return nil
	}
	h := &TypeHierarchy{Type: typ, Ancestors: q.ws.Ancestors(typ)}
	for _, path := range q.ws.Paths() {
		tree := q.ws.files[path].Tree
		for i := range tree.Symbols {
			s := &tree.Symbols[i]
			if s.Kind == symbols.KindType && q.ws.Deref(s.Inherit) == typ {
				h.Derived = append(h.Derived, s)
			}
		}
	}
	return h
}
