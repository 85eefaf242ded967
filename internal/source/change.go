package source

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Position is a 0-based line and a character offset counted in UTF-16 code
// units, as editors report them.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position
	End   Position
}

// Change is one edit to the buffer. A nil Range replaces the whole buffer.
type Change struct {
	Range *Range
	Text  string
}

// ApplyChange applies c and reports whether the symbol tree may have changed
// and the file needs a reparse. Edits confined to a trailing comment on a
// single line do not.
func (f *File) ApplyChange(c Change) bool {
	if c.Range == nil {
		f.SetText(c.Text)
		return true
	}
	if len(f.Lines) == 0 {
		f.Lines = []string{""}
	}
	start, end := c.Range.Start, c.Range.End
	if start.Line > end.Line || (start.Line == end.Line && start.Character > end.Character) {
		start, end = end, start
	}
	sl := clampLine(start.Line, len(f.Lines))
	el := clampLine(end.Line, len(f.Lines))
	startLine, endLine := f.Lines[sl], f.Lines[el]
	sc := ByteCol(startLine, start.Character)
	ec := ByteCol(endLine, end.Character)
	if sl == el && ec < sc {
		ec = sc
	}

	reparse := sl != el || strings.ContainsAny(c.Text, "\n\r") ||
		!insideComment(startLine, sc, endLine[sc:ec], c.Text)

	merged := startLine[:sc] + c.Text + endLine[ec:]
	replacement := splitLines(merged)
	lines := make([]string, 0, len(f.Lines)-(el-sl+1)+len(replacement))
	lines = append(lines, f.Lines[:sl]...)
	lines = append(lines, replacement...)
	lines = append(lines, f.Lines[el+1:]...)
	f.Lines = lines
	f.Hash = hashText(f.Text())
	return reparse
}

// insideComment reports whether replacing removed with inserted at byte col
// of line only touches comment text. Doc comments feed hover text, so they
// always count as code.
func insideComment(line string, col int, removed, inserted string) bool {
	ci := CommentIndex(line)
	if ci < 0 || col <= ci {
		return false
	}
	if strings.HasPrefix(strings.TrimSpace(line), "##") {
		return false
	}
	return !strings.ContainsAny(removed+inserted, "\"\\")
}

func clampLine(n, count int) int {
	if n < 0 {
		return 0
	}
	if n >= count {
		return count - 1
	}
	return n
}

// ByteCol converts a UTF-16 character offset into a byte offset in line,
// clamped to the line length.
func ByteCol(line string, character int) int {
	if character <= 0 {
		return 0
	}
	units := 0
	for i, r := range line {
		if units >= character {
			return i
		}
		units += utf16Len(r)
	}
	return len(line)
}

// UTF16Col converts a byte offset in line into a UTF-16 character offset.
func UTF16Col(line string, col int) int {
	if col > len(line) {
		col = len(line)
	}
	units := 0
	for i := 0; i < col; {
		r, size := utf8.DecodeRuneInString(line[i:])
		units += utf16Len(r)
		i += size
	}
	return units
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
