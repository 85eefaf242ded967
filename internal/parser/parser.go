// Package parser turns the text of a rule file into a symbols.Tree. It
// recognises the declaration statements of the rule language and nothing
// more; executable statements are skipped.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jward/rulesls/internal/source"
	"github.com/jward/rulesls/internal/symbols"
)

// ErrBinaryContent is returned for files that are not text.
var ErrBinaryContent = errors.New("file contains binary data")

// Severity grades a parse diagnostic.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
)

// Diagnostic is a problem found while parsing. Line is 1-based.
type Diagnostic struct {
	Line     int
	Message  string
	Severity Severity
}

// Prefixes of the names given to anonymous scopes.
const (
	GeneratedInterfacePrefix = "#gen_int"
	GeneratedBlockPrefix     = "#block"
)

type parser struct {
	tree  *symbols.Tree
	stack []symbols.ID
	diags []Diagnostic
	doc   []string

	genInterfaces int
	genBlocks     int
}

// Parse builds the symbol tree for f. The returned tree has generation 0;
// the workspace assigns one when it installs the tree.
func Parse(f *source.File) (*symbols.Tree, []Diagnostic, error) {
	for _, l := range f.Lines {
		if strings.IndexByte(l, 0) >= 0 {
			return nil, nil, fmt.Errorf("%s: %w", f.Path, ErrBinaryContent)
		}
	}
	p := &parser{tree: symbols.NewTree(f.Path)}
	for i := 0; i < len(f.Lines); {
		start := i
		raw := f.Lines[i]
		code := source.StripComment(raw)
		for source.Continues(f.Lines[i]) && i+1 < len(f.Lines) {
			code = strings.TrimSuffix(strings.TrimRight(code, " \t"), `\`) + " "
			i++
			code += source.StripComment(f.Lines[i])
		}
		i++
		p.statement(raw, code, start+1, i)
	}
	last := len(f.Lines)
	for len(p.stack) > 0 {
		s := p.tree.Get(p.top())
		p.diag(s.StartLine, SeverityError, fmt.Sprintf("%s %q is not closed", s.Kind, s.Name))
		s.EndLine = last
		p.stack = p.stack[:len(p.stack)-1]
	}
	return p.tree, p.diags, nil
}

func (p *parser) top() symbols.ID {
	if len(p.stack) == 0 {
		return symbols.NoID
	}
	return p.stack[len(p.stack)-1]
}

func (p *parser) topKind() symbols.Kind {
	if id := p.top(); id != symbols.NoID {
		return p.tree.Get(id).Kind
	}
	return symbols.KindOther
}

func (p *parser) diag(line int, sev Severity, msg string) {
	p.diags = append(p.diags, Diagnostic{Line: line, Message: msg, Severity: sev})
}

func (p *parser) takeDoc() string {
	doc := strings.Join(p.doc, "\n")
	p.doc = nil
	return doc
}

// statement handles one logical line spanning physical lines first..last
// (1-based, inclusive).
func (p *parser) statement(raw, code string, first, last int) {
	if strings.TrimSpace(code) == "" {
		if m := docRe.FindStringSubmatch(raw); m != nil {
			p.doc = append(p.doc, strings.TrimRight(m[1], " \t"))
		} else if strings.TrimSpace(raw) == "" {
			p.doc = nil
		}
		return
	}

	switch {
	case endRe.MatchString(code):
		p.end(endRe.FindStringSubmatch(code), first)
	case moduleRe.MatchString(code):
		m := moduleRe.FindStringSubmatch(code)
		if len(p.stack) > 0 {
			p.diag(first, SeverityError, fmt.Sprintf("module %q must be declared at file level", m[1]))
		}
		p.open(symbols.Symbol{Name: m[1], Kind: symbols.KindModule, StartLine: first, Doc: p.takeDoc()})
	case typeRe.MatchString(code):
		m := typeRe.FindStringSubmatch(code)
		p.open(symbols.Symbol{Name: m[1], Kind: symbols.KindType, Extends: m[2], StartLine: first, Doc: p.takeDoc()})
	case callableRe.MatchString(code):
		p.callable(callableRe.FindStringSubmatch(code), first)
	case interfaceRe.MatchString(code):
		name := interfaceRe.FindStringSubmatch(code)[1]
		if name == "" {
			p.genInterfaces++
			name = fmt.Sprintf("%s%d", GeneratedInterfacePrefix, p.genInterfaces)
		}
		p.open(symbols.Symbol{Name: name, Kind: symbols.KindInterface, StartLine: first, Doc: p.takeDoc()})
	case blockRe.MatchString(code):
		p.genBlocks++
		p.open(symbols.Symbol{
			Name:      fmt.Sprintf("%s%d", GeneratedBlockPrefix, p.genBlocks),
			Kind:      symbols.KindGeneratedBlock,
			StartLine: first,
		})
	case methodRe.MatchString(code):
		p.method(methodRe.FindStringSubmatch(code), first, last)
	case varRe.MatchString(code):
		m := varRe.FindStringSubmatch(code)
		p.variables(m[1], m[2], first, last)
	case procedureRe.MatchString(code) && p.topKind() == symbols.KindInterface:
		p.procedures(procedureRe.FindStringSubmatch(code)[1], first)
	default:
		p.doc = nil
	}
}

func (p *parser) open(sym symbols.Symbol) symbols.ID {
	id := p.tree.Add(p.top(), sym)
	p.stack = append(p.stack, id)
	return id
}

func (p *parser) end(m []string, line int) {
	p.doc = nil
	if len(p.stack) == 0 {
		p.diag(line, SeverityError, "unexpected end statement")
		return
	}
	s := p.tree.Get(p.top())
	if m[1] != "" && !endMatches(s.Kind, m[1]) {
		p.diag(line, SeverityError, fmt.Sprintf("end %s closes %s %q", strings.ToLower(m[1]), s.Kind, s.Name))
	}
	if m[2] != "" && !strings.HasPrefix(s.Name, "#") && !strings.EqualFold(m[2], s.Name) {
		p.diag(line, SeverityWarning, fmt.Sprintf("end name %q does not match %q", m[2], s.Name))
	}
	s.EndLine = line
	p.stack = p.stack[:len(p.stack)-1]
}

func endMatches(k symbols.Kind, word string) bool {
	switch strings.ToLower(word) {
	case "module":
		return k == symbols.KindModule
	case "type":
		return k == symbols.KindType
	case "subroutine":
		return k == symbols.KindSubroutine
	case "function":
		return k == symbols.KindFunction
	case "interface":
		return k == symbols.KindInterface
	case "block":
		return k == symbols.KindGeneratedBlock
	}
	return false
}

func (p *parser) callable(m []string, line int) {
	kind := symbols.KindSubroutine
	if strings.EqualFold(m[1], "function") {
		kind = symbols.KindFunction
	}
	var params []symbols.Param
	if strings.TrimSpace(m[3]) != "" {
		for _, arg := range source.SplitArgs(m[3]) {
			name, def, _ := strings.Cut(arg, "=")
			name = strings.TrimSpace(name)
			if !identRe.MatchString(name) {
				p.diag(line, SeverityError, fmt.Sprintf("invalid parameter %q in %s %s", strings.TrimSpace(arg), kind, m[2]))
				continue
			}
			params = append(params, symbols.Param{Name: name, Default: strings.TrimSpace(def)})
		}
	}
	if kind == symbols.KindSubroutine && m[4] != "" {
		p.diag(line, SeverityError, fmt.Sprintf("subroutine %s cannot declare a result type", m[2]))
	}
	id := p.open(symbols.Symbol{
		Name:      m[2],
		Kind:      kind,
		StartLine: line,
		Params:    params,
		TypeName:  m[4],
		Doc:       p.takeDoc(),
	})
	for _, prm := range params {
		p.tree.Add(id, symbols.Symbol{Name: prm.Name, Kind: symbols.KindVariable, StartLine: line, EndLine: line})
	}
}

func (p *parser) method(m []string, first, last int) {
	if p.topKind() != symbols.KindType {
		p.diag(first, SeverityError, fmt.Sprintf("method %s declared outside a type", m[1]))
		p.doc = nil
		return
	}
	bind := m[2]
	if bind == "" {
		bind = m[1]
	}
	p.tree.Add(p.top(), symbols.Symbol{
		Name:      m[1],
		Kind:      symbols.KindMethod,
		StartLine: first,
		EndLine:   last,
		BindName:  bind,
		Explicit:  m[2] != "",
		Doc:       p.takeDoc(),
	})
}

func (p *parser) variables(names, typeName string, first, last int) {
	doc := p.takeDoc()
	scope := p.top()
	for _, raw := range strings.Split(names, ",") {
		name := strings.TrimSpace(raw)
		if !identRe.MatchString(name) {
			p.diag(first, SeverityError, fmt.Sprintf("invalid variable name %q", name))
			continue
		}
		if existing := p.param(scope, name); existing != nil {
			existing.TypeName = typeName
			existing.StartLine = first
			existing.EndLine = last
			existing.Doc = doc
			continue
		}
		p.tree.Add(scope, symbols.Symbol{
			Name:      name,
			Kind:      symbols.KindVariable,
			StartLine: first,
			EndLine:   last,
			TypeName:  typeName,
			Doc:       doc,
		})
	}
}

// param returns the untyped parameter variable named name in a callable
// scope, so a later declaration types it instead of adding a duplicate.
func (p *parser) param(scope symbols.ID, name string) *symbols.Symbol {
	if scope == symbols.NoID {
		return nil
	}
	s := p.tree.Get(scope)
	if !s.Kind.IsCallable() {
		return nil
	}
	c := p.tree.Child(s, symbols.Key(name))
	if c == nil || c.Kind != symbols.KindVariable || c.TypeName != "" || c.StartLine != s.StartLine {
		return nil
	}
	for _, prm := range s.Params {
		if strings.EqualFold(prm.Name, name) {
			return c
		}
	}
	return nil
}

func (p *parser) procedures(list string, line int) {
	s := p.tree.Get(p.top())
	for _, raw := range strings.Split(list, ",") {
		name := strings.TrimSpace(raw)
		if !identRe.MatchString(name) {
			p.diag(line, SeverityError, fmt.Sprintf("invalid procedure name %q", name))
			continue
		}
		s.Members = append(s.Members, name)
	}
	p.doc = nil
}
