package rulesls

import (
	"strings"

	"github.com/jward/rulesls/internal/source"
	"github.com/jward/rulesls/internal/symbols"
)

// ReferencesTo finds every occurrence of sym by scanning for its name and
// resolving each hit.
//
// Symbols local to a callable, interface or block are only searched for in
// their own file. Procedures of an anonymous interface are scoped like the
// declarations around the interface. Type members are matched through the override chain, so a
// search for a base member also finds calls that resolve to its overrides.
// Method declarations that bind to sym implicitly (no "=>") are both counted
// as hits and returned in Implicit.
func (q *QueryBuilder) ReferencesTo(sym *symbols.Symbol) *References {
	refs := &References{Files: make(map[string][]Span)}
	if sym == nil || sym.Tree() == nil {
		return refs
	}

	paths := q.ws.Paths()
	typeMem := false
	parent := sym.ParentSymbol()
	if isGeneratedInterface(parent) {
		parent = parent.ParentSymbol()
	}
	if parent != nil {
		switch parent.Kind {
		case symbols.KindType:
			typeMem = true
		case symbols.KindModule:
		default:
			paths = []string{sym.File()}
		}
	}

	overrides := make(map[string]bool)
	pattern := source.WordPattern(sym.Name)
	for _, path := range paths {
		fi := q.ws.files[path]
		if fi == nil {
			continue
		}
		for i, raw := range fi.File.Lines {
			code := source.StripComment(raw)
			if strings.TrimSpace(code) == "" {
				continue
			}
			for _, m := range pattern.FindAllStringIndex(code, -1) {
				target := q.Resolve(path, i, m[0])
				if target == nil || target.Tree() == nil {
					continue
				}
				if !q.matchesReference(sym, target, path, i, code, typeMem, overrides, refs) {
					continue
				}
				refs.Files[path] = append(refs.Files[path], Span{Line: i, StartCol: m[0], EndCol: m[1]})
			}
		}
	}
	return refs
}

// matchesReference classifies a resolved hit on line i of path.
func (q *QueryBuilder) matchesReference(sym, target *symbols.Symbol, path string, i int, code string,
	typeMem bool, overrides map[string]bool, refs *References) bool {
	if target.FQSN == sym.FQSN || overrides[target.FQSN] {
		return true
	}
	if !target.InType() {
		return false
	}
	if typeMem {
		for _, base := range q.ws.Overridden(target) {
			if base.FQSN == sym.FQSN {
				overrides[target.FQSN] = true
				return true
			}
		}
	}
	if target.Kind == symbols.KindMethod && target.File() == path && target.StartLine-1 == i &&
		!strings.Contains(code, "=>") && q.ws.Deref(target.Link) == sym {
		refs.Implicit = append(refs.Implicit, target)
		return true
	}
	return false
}
