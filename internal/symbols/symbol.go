// Package symbols holds the per-file symbol arena built by the parser and
// the scope operations the query layer runs against it.
//
// Symbols never point at each other directly. A Symbol's parent and children
// are IDs into the Tree that owns it, and cross-file relations (Link,
// Inherit) are Refs that must be dereferenced through the workspace, which
// returns nil once the target file is gone or has been reparsed.
package symbols

import (
	"strings"

	"golang.org/x/text/cases"
)

// Kind classifies a Symbol.
type Kind int

const (
	KindOther Kind = iota
	KindModule
	KindSubroutine
	KindFunction
	KindType
	KindInterface
	KindVariable
	KindMethod
	KindGeneratedBlock
)

var kindNames = map[Kind]string{
	KindOther:          "other",
	KindModule:         "module",
	KindSubroutine:     "subroutine",
	KindFunction:       "function",
	KindType:           "type",
	KindInterface:      "interface",
	KindVariable:       "variable",
	KindMethod:         "method",
	KindGeneratedBlock: "block",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "other"
}

// ParseKind is the inverse of Kind.String. Unknown names map to KindOther.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindOther
}

// IsScope reports whether symbols of this kind own nested declarations.
func (k Kind) IsScope() bool {
	switch k {
	case KindModule, KindSubroutine, KindFunction, KindType, KindInterface, KindGeneratedBlock:
		return true
	}
	return false
}

// IsCallable reports whether the kind carries a parameter list.
func (k Kind) IsCallable() bool {
	return k == KindSubroutine || k == KindFunction
}

// ID indexes a Symbol inside its Tree.
type ID int32

// NoID marks the absence of a parent.
const NoID ID = -1

// Ref is a weak reference to a Symbol in some file's Tree. Gen pins the
// reference to one parse of that file.
type Ref struct {
	File string
	Gen  uint64
	ID   ID
}

// Valid reports whether r was ever set.
func (r Ref) Valid() bool {
	return r.File != "" && r.ID >= 0
}

// Param is one entry of a callable's parameter list.
type Param struct {
	Name    string
	Default string
}

// Label renders the parameter the way it appears in a signature. Keyword
// matching compares against the part before "=".
func (p Param) Label() string {
	if p.Default != "" {
		return p.Name + "=" + p.Default
	}
	return p.Name
}

// Symbol is a named, located declaration.
type Symbol struct {
	ID        ID
	Name      string
	Kind      Kind
	FQSN      string
	StartLine int // 1-based
	EndLine   int // 1-based, inclusive
	Parent    ID
	Children  []ID

	// TypeName is the declared type of a variable or the result type of a
	// function.
	TypeName string
	// Extends names the parent type of a type declaration.
	Extends string
	// BindName is the implementation a method binds to. Explicit is set when
	// the declaration spells it out with "=>".
	BindName string
	Explicit bool
	Params   []Param
	// Members lists the procedures of a named interface.
	Members []string
	Doc     string

	Link    Ref
	Inherit Ref

	key  string
	tree *Tree
}

// Key returns the folded name used for lookups.
func (s *Symbol) Key() string {
	if s.key == "" {
		return Key(s.Name)
	}
	return s.key
}

// Tree returns the arena that owns s, or nil for built-in symbols.
func (s *Symbol) Tree() *Tree {
	return s.tree
}

// File returns the path of the file that declares s. Built-in symbols have
// no file.
func (s *Symbol) File() string {
	if s.tree == nil {
		return ""
	}
	return s.tree.Path
}

// ParentSymbol returns the enclosing scope, or nil at file level.
func (s *Symbol) ParentSymbol() *Symbol {
	if s.tree == nil || s.Parent == NoID {
		return nil
	}
	return s.tree.Get(s.Parent)
}

// Ref returns a weak reference to s.
func (s *Symbol) Ref() Ref {
	if s.tree == nil {
		return Ref{ID: NoID}
	}
	return Ref{File: s.tree.Path, Gen: s.tree.Gen, ID: s.ID}
}

// Depth is the number of FQSN segments.
func (s *Symbol) Depth() int {
	return strings.Count(s.FQSN, Separator) + 1
}

// InType reports whether s is declared directly inside a type.
func (s *Symbol) InType() bool {
	p := s.ParentSymbol()
	return p != nil && p.Kind == KindType
}

// Separator joins FQSN segments.
const Separator = "::"

// Key folds a name for case-insensitive lookup. A Caser is not safe for
// concurrent use, so each call builds its own.
func Key(name string) string {
	return cases.Fold().String(name)
}

// Builtin returns a file-less symbol, used for the intrinsic tables.
func Builtin(name string, kind Kind, params []Param, doc string) *Symbol {
	return &Symbol{
		ID:     NoID,
		Name:   name,
		Kind:   kind,
		FQSN:   Key(name),
		Parent: NoID,
		key:    Key(name),
		Params: params,
		Doc:    doc,
		Link:   Ref{ID: NoID},
	}
}
