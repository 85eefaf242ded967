package rulesls

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/rulesls/internal/source"
	"github.com/jward/rulesls/internal/symbols"
)

// ErrNoReferences is returned by Rename when the symbol has no occurrences.
var ErrNoReferences = errors.New("no usages found to rename")

// ErrInvalidName is returned by Rename when the new name is not an
// identifier.
var ErrInvalidName = errors.New("invalid identifier")

// Rename computes the edits that rename sym to newName everywhere it is
// referenced.
//
// Renaming an implicitly bound method keeps the binding by rewriting its
// declaration to "newName => oldName". Renaming the implementation of an
// implicit binding rewrites the binding line to "method => newName".
func (q *QueryBuilder) Rename(sym *symbols.Symbol, newName string) (*RenameResult, error) {
	if sym == nil {
		return nil, ErrNoReferences
	}
	if !source.IsIdentifier(newName) {
		return nil, fmt.Errorf("rename %s to %q: %w", sym.Name, newName, ErrInvalidName)
	}
	refs := q.ReferencesTo(sym)
	if refs.Count() == 0 {
		return nil, ErrNoReferences
	}

	res := &RenameResult{Edits: make(map[string][]TextEdit, len(refs.Files))}
	for path, spans := range refs.Files {
		edits := make([]TextEdit, 0, len(spans))
		for _, sp := range spans {
			edits = append(edits, TextEdit{Span: sp, NewText: newName})
		}
		res.Edits[path] = edits
	}

	var bind *symbols.Symbol
	var bindText string
	if sym.Kind == symbols.KindMethod {
		if fi := q.ws.files[sym.File()]; fi != nil {
			_, cur, post := fi.File.CodeLine(sym.StartLine-1, false, true, true)
			if !strings.Contains(cur+strings.Join(post, ""), "=>") {
				bind = sym
				bindText = newName + " => " + sym.Name
			}
		}
	} else if len(refs.Implicit) > 0 && refs.Implicit[0].Kind == symbols.KindMethod {
		bind = refs.Implicit[0]
		bindText = bind.Name + " => " + newName
	}
	if bind != nil {
		edits := res.Edits[bind.File()]
		for i := range edits {
			if edits[i].Span.Line == bind.StartLine-1 {
				edits[i].NewText = bindText
			}
		}
	}
	return res, nil
}

// ApplyEdits applies the edits of one file to its text. Edits on the same
// line are applied rightmost first so earlier columns stay valid.
func ApplyEdits(text string, edits []TextEdit) string {
	lines := strings.Split(text, "\n")
	sorted := append([]TextEdit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Span.Line != sorted[j].Span.Line {
			return sorted[i].Span.Line < sorted[j].Span.Line
		}
		return sorted[i].Span.StartCol > sorted[j].Span.StartCol
	})
	for _, e := range sorted {
		if e.Span.Line < 0 || e.Span.Line >= len(lines) {
			continue
		}
		l := lines[e.Span.Line]
		if e.Span.StartCol > e.Span.EndCol || e.Span.EndCol > len(l) {
			continue
		}
		lines[e.Span.Line] = l[:e.Span.StartCol] + e.NewText + l[e.Span.EndCol:]
	}
	return strings.Join(lines, "\n")
}
