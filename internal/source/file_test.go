package source

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = `module net
  subroutine check(self, \
                   pkt)   # trailing
    var x : int
  end
end`

func TestCodeLine_JoinsContinuations(t *testing.T) {
	t.Parallel()
	f := NewText("a.rules", sampleText)

	pre, cur, post := f.CodeLine(2, true, false, true)
	assert.Equal(t, []string{"  subroutine check(self, "}, pre)
	assert.Equal(t, "                   pkt)   ", cur)
	assert.Nil(t, post)

	pre, cur, post = f.CodeLine(1, false, true, true)
	assert.Nil(t, pre)
	assert.Equal(t, "  subroutine check(self, ", cur)
	assert.Equal(t, []string{"                   pkt)   "}, post)
}

func TestCodeLine_OutOfRange(t *testing.T) {
	t.Parallel()
	f := NewText("a.rules", "x")
	pre, cur, post := f.CodeLine(5, true, true, true)
	assert.Nil(t, pre)
	assert.Empty(t, cur)
	assert.Nil(t, post)
}

func TestStripComment_IgnoresMarkersInStrings(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `log("a # b") `, StripComment(`log("a # b") # note`))
	assert.Equal(t, "", StripComment("# whole line"))
	assert.Equal(t, "plain", StripComment("plain"))
}

func TestContinues(t *testing.T) {
	t.Parallel()
	assert.True(t, Continues(`a, \`))
	assert.True(t, Continues(`a, \   # comment`))
	assert.False(t, Continues(`a # \`))
	assert.False(t, Continues(`a`))
}

func TestFindWord(t *testing.T) {
	t.Parallel()
	f := NewText("a.rules", "  var Foo, foobar : int # foo")
	line, start, end := f.FindWord(0, "foo")
	assert.Equal(t, 0, line)
	assert.Equal(t, 6, start)
	assert.Equal(t, 9, end)

	_, start, end = f.FindWord(0, "missing")
	assert.Equal(t, -1, start)
	assert.Equal(t, -1, end)
}

func TestWordSpans_WholeWordCaseInsensitive(t *testing.T) {
	t.Parallel()
	spans := WordSpans("call r%Check(check_all, CHECK)", "check")
	assert.Equal(t, [][2]int{{7, 12}, {24, 29}}, spans)
}

func TestLoad_SkipsUnchangedContent(t *testing.T) {
	t.Parallel()
	content := []byte("module m\nend\n")
	reads := 0
	read := func(string) ([]byte, error) {
		reads++
		return content, nil
	}
	f := New("m.rules")

	changed, err := f.Load(read)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"module m", "end", ""}, f.Lines)

	changed, err = f.Load(read)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, reads)
}

func TestLoad_PropagatesReadError(t *testing.T) {
	t.Parallel()
	f := New("gone.rules")
	_, err := f.Load(func(string) ([]byte, error) { return nil, fs.ErrNotExist })
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestApplyChange_FullReplacement(t *testing.T) {
	t.Parallel()
	f := NewText("a.rules", "old")
	assert.True(t, f.ApplyChange(Change{Text: "new\ntext"}))
	assert.Equal(t, []string{"new", "text"}, f.Lines)
}

func TestApplyChange_ReparseFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		rng     Range
		insert  string
		reparse bool
	}{
		{"code edit", "var x : int", Range{Position{0, 4}, Position{0, 5}}, "y", true},
		{"inside comment", "var x : int # note", Range{Position{0, 14}, Position{0, 18}}, "memo", false},
		{"quote in comment", "var x : int # note", Range{Position{0, 14}, Position{0, 14}}, `"`, true},
		{"doc comment", "## helper", Range{Position{0, 3}, Position{0, 9}}, "other", true},
		{"newline", "var x : int # note", Range{Position{0, 18}, Position{0, 18}}, "\nvar y : int", true},
		{"multi line", "a\nb", Range{Position{0, 1}, Position{1, 0}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewText("a.rules", tt.text)
			rng := tt.rng
			assert.Equal(t, tt.reparse, f.ApplyChange(Change{Range: &rng, Text: tt.insert}))
		})
	}
}

func TestApplyChange_MatchesFullReplacement(t *testing.T) {
	t.Parallel()
	start := "module m\n  var x : int\nend"
	incremental := NewText("a.rules", start)
	incremental.ApplyChange(Change{Range: &Range{Position{1, 6}, Position{1, 7}}, Text: "count"})
	incremental.ApplyChange(Change{Range: &Range{Position{1, 17}, Position{1, 17}}, Text: "\n  var y : int"})
	incremental.ApplyChange(Change{Range: &Range{Position{0, 7}, Position{0, 8}}, Text: "net"})

	full := NewText("a.rules", start)
	full.ApplyChange(Change{Text: "module net\n  var count : int\n  var y : int\nend"})

	assert.Equal(t, full.Lines, incremental.Lines)
	assert.Equal(t, full.Hash, incremental.Hash)
}

func TestApplyChange_UTF16Columns(t *testing.T) {
	t.Parallel()
	f := NewText("a.rules", `log("é😀") # x`)
	// "é" is one UTF-16 unit, the emoji two; the closing quote sits at unit 8.
	f.ApplyChange(Change{Range: &Range{Position{0, 5}, Position{0, 8}}, Text: "ab"})
	assert.Equal(t, `log("ab") # x`, f.Lines[0])
}

func TestColumnConversions(t *testing.T) {
	t.Parallel()
	line := "a😀b"
	assert.Equal(t, 5, ByteCol(line, 3))
	assert.Equal(t, 3, UTF16Col(line, 5))
	assert.Equal(t, len(line), ByteCol(line, 99))
	assert.Equal(t, 0, ByteCol(line, -1))
}
