package rulesls

import (
	"strings"

	"github.com/jward/rulesls/internal/parser"
	"github.com/jward/rulesls/internal/symbols"
)

func isType(s *symbols.Symbol) bool { return s.Kind == symbols.KindType }

func isCallable(s *symbols.Symbol) bool { return s.Kind.IsCallable() }

// isGeneratedInterface reports whether s is an anonymous interface block.
// Its procedures belong to the enclosing scope.
func isGeneratedInterface(s *symbols.Symbol) bool {
	return s != nil && s.Kind == symbols.KindInterface && strings.HasPrefix(s.Name, parser.GeneratedInterfacePrefix)
}

// lookupChild finds key among the direct children of scope (nil for file
// level), then among the procedures of the anonymous interfaces declared
// there.
func lookupChild(tree *symbols.Tree, scope *symbols.Symbol, key string) *symbols.Symbol {
	if c := tree.Child(scope, key); c != nil {
		return c
	}
	ids := tree.Roots
	if scope != nil {
		ids = scope.Children
	}
	for _, id := range ids {
		if g := tree.Get(id); isGeneratedInterface(g) {
			if c := tree.Child(g, key); c != nil {
				return c
			}
		}
	}
	return nil
}

// resolveLinks recomputes every Inherit and Link ref in the workspace. A
// type's parent and a method's implementation are looked up from the scope
// enclosing the type, so a binding never resolves to a member of the type
// itself.
func (w *Workspace) resolveLinks() {
	for _, fi := range w.files {
		tree := fi.Tree
		for i := range tree.Symbols {
			s := &tree.Symbols[i]
			s.Inherit = symbols.Ref{ID: symbols.NoID}
			s.Link = symbols.Ref{ID: symbols.NoID}
		}
	}
	for _, fi := range w.files {
		tree := fi.Tree
		for i := range tree.Symbols {
			s := &tree.Symbols[i]
			switch {
			case s.Kind == symbols.KindType && s.Extends != "":
				if base := w.find(tree, s.ParentSymbol(), symbols.Key(s.Extends), isType); base != nil && base != s {
					s.Inherit = base.Ref()
				}
			case s.Kind == symbols.KindMethod && s.BindName != "":
				var outer *symbols.Symbol
				if p := s.ParentSymbol(); p != nil {
					outer = p.ParentSymbol()
				}
				if impl := w.find(tree, outer, symbols.Key(s.BindName), isCallable); impl != nil {
					s.Link = impl.Ref()
				}
			}
		}
	}
}

// find looks key up from scope outward, then among the file-level
// declarations of tree, then in the global table. accept filters candidates;
// nil accepts anything.
func (w *Workspace) find(tree *symbols.Tree, scope *symbols.Symbol, key string, accept func(*symbols.Symbol) bool) *symbols.Symbol {
	ok := func(s *symbols.Symbol) bool {
		return s != nil && (accept == nil || accept(s))
	}
	for s := scope; s != nil; s = s.ParentSymbol() {
		if c := w.findInScope(s, key); ok(c) {
			return c
		}
	}
	if tree != nil {
		if c := lookupChild(tree, nil, key); ok(c) {
			return c
		}
	}
	for _, r := range w.global[key] {
		if c := w.Deref(r); ok(c) {
			return c
		}
	}
	return nil
}

// findInScope looks key up among the children of scope. Type scopes also
// see inherited members.
func (w *Workspace) findInScope(scope *symbols.Symbol, key string) *symbols.Symbol {
	if scope.Kind == symbols.KindType {
		return w.member(scope, key)
	}
	tree := scope.Tree()
	if tree == nil {
		return nil
	}
	return lookupChild(tree, scope, key)
}

// member finds key among the members of typ and then of its ancestors.
func (w *Workspace) member(typ *symbols.Symbol, key string) *symbols.Symbol {
	seen := make(map[*symbols.Symbol]bool)
	for t := typ; t != nil && !seen[t]; t = w.Deref(t.Inherit) {
		seen[t] = true
		if tree := t.Tree(); tree != nil {
			if c := tree.Child(t, key); c != nil {
				return c
			}
		}
	}
	return nil
}

// typeOf returns the type a value of s has: the declared type of a variable,
// the result type of a function, or the result type of the function a method
// is bound to.
func (w *Workspace) typeOf(s *symbols.Symbol) *symbols.Symbol {
	if s == nil {
		return nil
	}
	owner := s
	switch s.Kind {
	case symbols.KindVariable, symbols.KindFunction:
	case symbols.KindMethod:
		owner = w.Deref(s.Link)
		if owner == nil || owner.Kind != symbols.KindFunction {
			return nil
		}
	default:
		return nil
	}
	if owner.TypeName == "" || owner.Tree() == nil {
		return nil
	}
	return w.find(owner.Tree(), owner.ParentSymbol(), symbols.Key(owner.TypeName), isType)
}

// climbTypeTree follows a member access chain such as a%b (without the final
// segment) and returns the type of its last element.
func (w *Workspace) climbTypeTree(tree *symbols.Tree, scope *symbols.Symbol, chain []string) *symbols.Symbol {
	if len(chain) == 0 || chain[0] == "" {
		return nil
	}
	typ := w.typeOf(w.find(tree, scope, symbols.Key(chain[0]), nil))
	for _, seg := range chain[1:] {
		if typ == nil || seg == "" {
			return nil
		}
		typ = w.typeOf(w.member(typ, symbols.Key(seg)))
	}
	return typ
}
