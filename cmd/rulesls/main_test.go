package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const typeFile = `type T
  var foo : int
end type
`

const useFile = `subroutine main(x)
  var x : T
  n = x%foo
end subroutine
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func load(t *testing.T, dir string) *loaded {
	t.Helper()
	l, err := loadWorkspace(context.Background(), dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return l
}

func TestFindRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRoot(root))
}

func TestFindRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRoot(deep))
}

func TestFindRoot_SettingsFileWinsOverOuterRepo(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	project := filepath.Join(root, "rules")
	writeFile(t, project, ".rulesls", "{}")
	deep := filepath.Join(project, "net")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, project, findRoot(deep))
}

func TestFindRoot_NoMarker(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.Equal(t, dir, findRoot(dir))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	err := validateFormat("yaml")
	require.Error(t, err)
	assert.Equal(t, `invalid format "yaml": must be json or text`, err.Error())
}

func TestParseIntArg(t *testing.T) {
	t.Parallel()
	n, err := parseIntArg("12", "line")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = parseIntArg("x", "line")
	assert.EqualError(t, err, `invalid line "x": must be a non-negative integer`)
	_, err = parseIntArg("-1", "col")
	assert.EqualError(t, err, `invalid col "-1": must be non-negative`)
}

func TestLineDiff(t *testing.T) {
	t.Parallel()
	got := lineDiff("a.rules", "one\ntwo\nthree\n", "one\n2\nthree\n")
	assert.Equal(t, "--- a.rules\n+++ a.rules\n-two\n+2\n", got)
}

func TestCheckWorkspace_ParserDiagnostics(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.rules", typeFile)
	bad := writeFile(t, dir, "bad.rules", "end\n")
	l := load(t, dir)

	diags, err := checkWorkspace(context.Background(), l, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, CLIDiagnostic{
		File:     bad,
		Line:     0,
		Severity: severityError,
		Source:   "rulesls",
		Message:  "unexpected end statement",
	}, diags[0])
}

func TestRenameOutput_Diff(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := writeFile(t, dir, "a.rules", typeFile)
	b := writeFile(t, dir, "b.rules", useFile)
	l := load(t, dir)

	q := l.ws.Query()
	res, err := q.Rename(q.Resolve(b, 2, 9), "bar")
	require.NoError(t, err)

	out, err := renameOutput(l.ws, res, true)
	require.NoError(t, err)
	require.Len(t, out.Files, 2)
	assert.Equal(t, []CLIEdit{{Line: 2, StartCol: 8, EndCol: 11, NewText: "bar"}}, out.Files[b])
	assert.Contains(t, out.Diff, "--- "+a+"\n+++ "+a+"\n-  var foo : int\n+  var bar : int\n")
	assert.Contains(t, out.Diff, "-  n = x%foo\n+  n = x%bar\n")
}

func TestWriteEdits(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := writeFile(t, dir, "a.rules", typeFile)
	b := writeFile(t, dir, "b.rules", useFile)
	l := load(t, dir)

	q := l.ws.Query()
	res, err := q.Rename(q.Resolve(b, 2, 9), "bar")
	require.NoError(t, err)
	require.NoError(t, writeEdits(l.ws, res))

	data, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "type T\n  var bar : int\nend type\n", string(data))
}

func TestFormatDiagnosticsText(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{Command: "check", Results: []CLIDiagnostic{
		{File: "a.rules", Line: 3, Severity: severityError, Source: "suricata", Message: "bad option", Code: 101},
		{File: "a.rules", Line: 7, Severity: severityWarning, Source: "rulesls lint", Message: "missing sid"},
	}})
	require.NoError(t, err)
	assert.Equal(t,
		"a.rules:3: error: bad option [101] (suricata)\n"+
			"a.rules:7: warning: missing sid (rulesls lint)\n",
		buf.String())
}

func TestOutputResultText_UnsupportedType(t *testing.T) {
	t.Parallel()
	err := outputResultText(io.Discard, CLIResult{Results: 42})
	assert.EqualError(t, err, "unsupported result type for text format: int")
}
