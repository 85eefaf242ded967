package rulesls

import (
	"fmt"
	"strings"

	"github.com/jward/rulesls/internal/symbols"
)

// HoverAt renders the declaration the name at (line, col) resolves to.
func (q *QueryBuilder) HoverAt(path string, line, col int) *Hover {
	s := q.Resolve(path, line, col)
	if s == nil {
		return nil
	}
	var h Hover
	switch s.Kind {
	case symbols.KindInterface:
		for _, m := range q.interfaceMembers(s) {
			h.Contents = append(h.Contents, longHover(m))
		}
	default:
		h.Contents = append(h.Contents, q.shortHover(s))
		if s.Doc != "" {
			h.Contents = append(h.Contents, s.Doc)
		}
	}
	if len(h.Contents) == 0 {
		return nil
	}
	return &h
}

// interfaceMembers returns the procedures an interface stands for: the
// resolved procedure list of a named interface, or the callables declared in
// an anonymous one.
func (q *QueryBuilder) interfaceMembers(s *symbols.Symbol) []*symbols.Symbol {
	var out []*symbols.Symbol
	if len(s.Members) > 0 {
		for _, m := range s.Members {
			if impl := q.ws.find(s.Tree(), s.ParentSymbol(), symbols.Key(m), isCallable); impl != nil {
				out = append(out, impl)
			}
		}
		return out
	}
	if tree := s.Tree(); tree != nil {
		for _, c := range tree.ChildrenOf(s) {
			if c.Kind.IsCallable() {
				out = append(out, c)
			}
		}
	}
	return out
}

func (q *QueryBuilder) shortHover(s *symbols.Symbol) string {
	switch s.Kind {
	case symbols.KindSubroutine, symbols.KindFunction:
		return longHover(s)
	case symbols.KindVariable:
		if s.TypeName == "" {
			return "var " + s.Name
		}
		return fmt.Sprintf("var %s : %s", s.Name, s.TypeName)
	case symbols.KindType:
		if s.Extends != "" {
			return fmt.Sprintf("type %s extends %s", s.Name, s.Extends)
		}
		return "type " + s.Name
	case symbols.KindMethod:
		if impl := q.ws.Deref(s.Link); impl != nil {
			return fmt.Sprintf("method %s => %s", s.Name, longHover(impl))
		}
		return fmt.Sprintf("method %s => %s", s.Name, s.BindName)
	}
	return fmt.Sprintf("%s %s", s.Kind, s.Name)
}

// longHover renders a callable header the way it is declared.
func longHover(s *symbols.Symbol) string {
	labels := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		labels = append(labels, p.Label())
	}
	out := fmt.Sprintf("%s %s(%s)", s.Kind, s.Name, strings.Join(labels, ", "))
	if s.Kind == symbols.KindFunction && s.TypeName != "" {
		out += " result " + s.TypeName
	}
	return out
}
