package rulesls

import (
	"github.com/jward/rulesls/internal/source"
	"github.com/jward/rulesls/internal/symbols"
)

// QueryBuilder provides the editor-facing query API over a Workspace. It
// only reads; none of its methods mutate the index.
type QueryBuilder struct {
	ws *Workspace
}

// cursor is the text context of a position, shared by the position-based
// queries.
type cursor struct {
	fi     *FileIndex
	line   int
	col    int
	cur    string
	prefix string
	scope  *symbols.Symbol
}

// cursorAt assembles the logical line around (line, col) with comments
// stripped. It returns nil for unknown files and for positions inside a
// string literal.
func (q *QueryBuilder) cursorAt(path string, line, col int) *cursor {
	fi := q.ws.files[path]
	if fi == nil || line < 0 || line >= len(fi.File.Lines) {
		return nil
	}
	pre, cur, _ := fi.File.CodeLine(line, true, false, true)
	prefix, ok := source.LinePrefix(pre, cur, col)
	if !ok {
		return nil
	}
	return &cursor{
		fi:     fi,
		line:   line,
		col:    col,
		cur:    cur,
		prefix: prefix,
		scope:  fi.Tree.InnerScope(line + 1),
	}
}

// LocationOf returns where s is declared: the first occurrence of its name
// on its declaration line. Built-in symbols have no location.
func (q *QueryBuilder) LocationOf(s *symbols.Symbol) *Location {
	if s == nil || s.Tree() == nil {
		return nil
	}
	fi := q.ws.files[s.File()]
	if fi == nil {
		return nil
	}
	line, start, end := fi.File.FindWord(s.StartLine-1, s.Name)
	if start < 0 {
		start, end = 0, 0
	}
	return &Location{File: s.File(), StartLine: line, StartCol: start, EndLine: line, EndCol: end}
}
