package rulesls

import (
	"strings"

	"github.com/jward/rulesls/internal/parser"
	"github.com/jward/rulesls/internal/source"
	"github.com/jward/rulesls/internal/symbols"
)

// SignatureAt describes the call whose argument list encloses (line, col).
// Declaration and end lines never have a signature.
func (q *QueryBuilder) SignatureAt(path string, line, col int) *Signature {
	c := q.cursorAt(path, line, col)
	if c == nil || parser.IsScopeStart(c.cur) || parser.IsEnd(c.cur) {
		return nil
	}
	callee, args, lead, ok := source.OpenCall(c.prefix)
	if !ok {
		return nil
	}
	stack := source.VarStack(callee)
	name := stack[len(stack)-1]
	if name == "" {
		return nil
	}
	key := symbols.Key(name)

	var target *symbols.Symbol
	if len(stack) > 1 {
		if typ := q.ws.climbTypeTree(c.fi.Tree, c.scope, stack[:len(stack)-1]); typ != nil {
			target = q.ws.member(typ, key)
		}
	} else {
		target = q.ws.find(c.fi.Tree, c.scope, key, nil)
	}
	if target == nil {
		if refs := q.ws.global[key]; len(refs) > 0 {
			target = q.ws.Deref(refs[0])
		}
	}
	if target == nil {
		target = parser.Intrinsic(name)
	}
	if target == nil && parser.IsStatementPosition(lead) {
		target = parser.Statement(name)
	}

	sig := q.signatureOf(target)
	if sig == nil {
		return nil
	}
	sig.Active = activeParam(args, sig.Params)
	return sig
}

// signatureOf builds the signature of a callable. A method borrows the
// signature of its implementation without the passed-object parameter, and a
// named interface that of its first resolvable procedure.
func (q *QueryBuilder) signatureOf(s *symbols.Symbol) *Signature {
	if s == nil {
		return nil
	}
	switch {
	case s.Kind.IsCallable():
		return callableSignature(s.Name, s.Doc, s.Params)
	case s.Kind == symbols.KindMethod:
		impl := q.ws.Deref(s.Link)
		if impl == nil || !impl.Kind.IsCallable() {
			return nil
		}
		params := impl.Params
		if len(params) > 0 {
			params = params[1:]
		}
		doc := s.Doc
		if doc == "" {
			doc = impl.Doc
		}
		return callableSignature(s.Name, doc, params)
	case s.Kind == symbols.KindInterface && len(s.Members) > 0:
		for _, m := range s.Members {
			if impl := q.ws.find(s.Tree(), s.ParentSymbol(), symbols.Key(m), isCallable); impl != nil {
				return callableSignature(impl.Name, impl.Doc, impl.Params)
			}
		}
	}
	return nil
}

func callableSignature(name, doc string, params []symbols.Param) *Signature {
	sig := &Signature{Doc: doc, Params: make([]ParamInfo, 0, len(params))}
	labels := make([]string, 0, len(params))
	for _, p := range params {
		sig.Params = append(sig.Params, ParamInfo{Label: p.Label()})
		labels = append(labels, p.Label())
	}
	sig.Label = name + "(" + strings.Join(labels, ", ") + ")"
	return sig
}

// activeParam picks the parameter being typed. A keyword argument selects
// the parameter it names; an argument following a keyword argument selects
// the parameter after that one.
func activeParam(args []string, params []ParamInfo) int {
	active := len(args) - 1
	if active < 0 {
		return 0
	}
	if i, ok := checkOptional(args[active], params); ok {
		return i
	}
	if active > 0 {
		if i, ok := checkOptional(args[active-1], params); ok {
			return i + 1
		}
	}
	return active
}

func checkOptional(arg string, params []ParamInfo) (int, bool) {
	name, _, found := strings.Cut(arg, "=")
	if !found {
		return 0, false
	}
	name = strings.TrimSpace(name)
	for i, p := range params {
		label, _, _ := strings.Cut(p.Label, "=")
		if strings.EqualFold(label, name) {
			return i, true
		}
	}
	return 0, false
}
