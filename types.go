package rulesls

import (
	"github.com/jward/rulesls/internal/parser"
	"github.com/jward/rulesls/internal/source"
	"github.com/jward/rulesls/internal/symbols"
)

// Public type aliases for internal types used in the Workspace and
// QueryBuilder API. External consumers use these names; no conversion is
// needed.

type Symbol = symbols.Symbol
type Kind = symbols.Kind
type Ref = symbols.Ref
type Tree = symbols.Tree
type File = source.File
type Change = source.Change
type Position = source.Position
type Range = source.Range
type Diagnostic = parser.Diagnostic

// Location is a source position range. Lines and columns are 0-based and
// columns count bytes.
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Span is one occurrence of a name on a line: [StartCol, EndCol) in bytes.
type Span struct {
	Line     int
	StartCol int
	EndCol   int
}

// References is the result of a reference search. Files maps each path with
// hits to its spans in line order. Implicit lists the method declarations
// that bind to the searched symbol without spelling out "=>".
type References struct {
	Files    map[string][]Span
	Implicit []*Symbol
}

// Count is the total number of spans across all files.
func (r *References) Count() int {
	n := 0
	for _, spans := range r.Files {
		n += len(spans)
	}
	return n
}

// ParamInfo is one parameter of a Signature.
type ParamInfo struct {
	Label string
	Doc   string
}

// Signature describes the callable enclosing the cursor and the argument
// being typed.
type Signature struct {
	Label  string
	Doc    string
	Params []ParamInfo
	Active int
}

// TextEdit replaces the text covered by Span.
type TextEdit struct {
	Span    Span
	NewText string
}

// RenameResult holds the edits of a rename, keyed by file path.
type RenameResult struct {
	Edits map[string][]TextEdit
}

// OutlineKind is the editor-facing symbol kind. Values follow the LSP
// SymbolKind numbering.
type OutlineKind int

const (
	OutlineFile      OutlineKind = 1
	OutlineModule    OutlineKind = 2
	OutlineClass     OutlineKind = 5
	OutlineMethod    OutlineKind = 6
	OutlineInterface OutlineKind = 11
	OutlineFunction  OutlineKind = 12
	OutlineVariable  OutlineKind = 13
)

// OutlineSymbol is one entry of a document or workspace symbol listing.
type OutlineSymbol struct {
	Name          string
	Kind          OutlineKind
	ContainerName string
	Location      Location
}

// Hover is the hover text for a symbol: one entry per rendered declaration.
type Hover struct {
	Contents []string
}

// CompletionItem is a keyword offered by completion.
type CompletionItem struct {
	Label      string
	Detail     string
	Doc        string
	Markdown   bool
	Deprecated bool
}
