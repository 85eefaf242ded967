package rulesls

import (
	"context"
	"io/fs"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/rulesls/internal/source"
	"github.com/jward/rulesls/internal/symbols"
)

// netRules and mainRules are the two-file fixture most query tests run
// against. Line numbers in the tests are 0-based.
const netRules = `## Packet helpers.
module netdefs
  type Rule
    var sid : int
    method check
    method run => run_rule
    method clone
  end type Rule

  type AlertRule extends Rule
    method check => alert_check
  end type

  subroutine check(self, pkt)
    var self : Rule
  end subroutine check

  subroutine alert_check(self, pkt)
  end subroutine

  subroutine run_rule(self, limit, mode=fast)
  end subroutine

  function clone(self) result Rule
  end function
end module netdefs
`

const mainRules = `subroutine main(r, a)
  var r : Rule
  var a : AlertRule
  call r%check(1)
  call a%check(2)
  call r%run(mode=slow, 5)
  x = r%clone()%sid
  y = contains(r, "check")  # check
  alert("hit", sid=5)
end subroutine main
`

// memFiles is a concurrency-safe in-memory file system for WithReadFile.
type memFiles struct {
	mu    sync.Mutex
	files map[string]string
}

func newMemFiles(files map[string]string) *memFiles {
	m := &memFiles{files: make(map[string]string, len(files))}
	for k, v := range files {
		m.files[k] = v
	}
	return m
}

func (m *memFiles) read(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return []byte(text), nil
}

func (m *memFiles) set(path, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = text
}

func (m *memFiles) remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

func (m *memFiles) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	return out
}

func newTestWorkspace(t *testing.T, files map[string]string, opts ...Option) (*Workspace, *memFiles) {
	t.Helper()
	mem := newMemFiles(files)
	ws := New(append([]Option{WithReadFile(mem.read)}, opts...)...)
	warnings, err := ws.Init(context.Background(), mem.paths(), 4)
	require.NoError(t, err)
	require.Empty(t, warnings)
	return ws, mem
}

func fixtureWorkspace(t *testing.T, opts ...Option) (*Workspace, *memFiles) {
	t.Helper()
	return newTestWorkspace(t, map[string]string{"a.rules": netRules, "b.rules": mainRules}, opts...)
}

func globalFiles(ws *Workspace, name string) []string {
	var out []string
	for _, s := range ws.Global(name) {
		out = append(out, s.File())
	}
	return out
}

// =============================================================================
// Init
// =============================================================================

func TestInit_BuildsGlobalTable(t *testing.T) {
	t.Parallel()
	ws, _ := fixtureWorkspace(t)

	assert.Equal(t, []string{"a.rules", "b.rules"}, ws.Paths())
	assert.Equal(t, []string{
		"alert_check", "alertrule", "check", "clone", "main", "netdefs", "rule", "run_rule",
	}, ws.GlobalKeys())

	rule := ws.Global("RULE")
	require.Len(t, rule, 1)
	assert.Equal(t, "netdefs::rule", rule[0].FQSN)
	assert.Empty(t, ws.Global("sid"), "type members are not global")
	assert.Empty(t, ws.Global("r"), "locals are not global")
}

func TestInit_ResolvesLinks(t *testing.T) {
	t.Parallel()
	ws, _ := fixtureWorkspace(t)
	tree := ws.File("a.rules").Tree
	mod := tree.Root()[0]
	rule := tree.Child(mod, "rule")
	alert := tree.Child(mod, "alertrule")

	assert.Same(t, rule, ws.Deref(alert.Inherit))
	assert.Nil(t, ws.Deref(rule.Inherit))

	assert.Equal(t, "netdefs::check", ws.Deref(tree.Child(rule, "check").Link).FQSN)
	assert.Equal(t, "netdefs::run_rule", ws.Deref(tree.Child(rule, "run").Link).FQSN)
	assert.Equal(t, "netdefs::clone", ws.Deref(tree.Child(rule, "clone").Link).FQSN)
	assert.Equal(t, "netdefs::alert_check", ws.Deref(tree.Child(alert, "check").Link).FQSN)
}

func TestInit_WarnsAndSkipsBadFiles(t *testing.T) {
	t.Parallel()
	mem := newMemFiles(map[string]string{
		"good.rules": "module m\nend module\n",
		"bin.rules":  "module \x00\n",
	})
	ws := New(WithReadFile(mem.read))

	warnings, err := ws.Init(context.Background(), []string{"missing.rules", "good.rules", "bin.rules", "good.rules"}, 2)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.True(t, strings.HasPrefix(warnings[0], `Initialization failed for file "bin.rules": `), warnings[0])
	assert.Contains(t, warnings[0], "binary")
	assert.True(t, strings.HasPrefix(warnings[1], `Initialization failed for file "missing.rules": `), warnings[1])
	assert.Equal(t, []string{"good.rules"}, ws.Paths())
}

func TestInit_DeterministicAcrossWorkerCounts(t *testing.T) {
	t.Parallel()
	files := map[string]string{"a.rules": netRules, "b.rules": mainRules}
	for i := 0; i < 20; i++ {
		files["gen/"+string(rune('a'+i))+".rules"] = "module m" + string(rune('a'+i)) + "\n  subroutine check(x)\n  end subroutine\nend module\n"
	}

	snapshot := func(workers int) map[string][]string {
		mem := newMemFiles(files)
		ws := New(WithReadFile(mem.read))
		_, err := ws.Init(context.Background(), mem.paths(), workers)
		require.NoError(t, err)
		out := make(map[string][]string)
		for _, key := range ws.GlobalKeys() {
			for _, s := range ws.Global(key) {
				out[key] = append(out[key], s.File()+":"+s.FQSN)
			}
		}
		return out
	}

	serial := snapshot(1)
	assert.Len(t, serial["check"], 21)
	assert.Equal(t, "a.rules:netdefs::check", serial["check"][0])
	assert.Equal(t, serial, snapshot(2))
	assert.Equal(t, serial, snapshot(8))
}

func TestInit_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mem := newMemFiles(map[string]string{"a.rules": netRules})
	ws := New(WithReadFile(mem.read))
	_, err := ws.Init(ctx, []string{"a.rules"}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Update / Remove
// =============================================================================

func TestUpdate_ReadFromDiskSkipsUnchanged(t *testing.T) {
	t.Parallel()
	ws, mem := fixtureWorkspace(t)
	gen := ws.File("a.rules").Tree.Gen

	changed, err := ws.Update("a.rules", UpdateOptions{ReadFromDisk: true})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, gen, ws.File("a.rules").Tree.Gen)

	mem.set("a.rules", strings.Replace(netRules, "method clone", "method copy => clone", 1))
	changed, err = ws.Update("a.rules", UpdateOptions{ReadFromDisk: true})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Greater(t, ws.File("a.rules").Tree.Gen, gen)

	tree := ws.File("a.rules").Tree
	rule := tree.Child(tree.Root()[0], "rule")
	assert.Nil(t, tree.Child(rule, "clone"))
	require.NotNil(t, tree.Child(rule, "copy"))
}

func TestUpdate_AllowEmpty(t *testing.T) {
	t.Parallel()
	ws, _ := fixtureWorkspace(t)

	_, err := ws.Update("new.rules", UpdateOptions{ReadFromDisk: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	changed, err := ws.Update("new.rules", UpdateOptions{ReadFromDisk: true, AllowEmpty: true})
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, ws.File("new.rules"))
	assert.Equal(t, 0, ws.File("new.rules").Tree.Len())
}

func TestUpdate_UnknownFile(t *testing.T) {
	t.Parallel()
	ws, _ := fixtureWorkspace(t)
	_, err := ws.Update("nope.rules", UpdateOptions{Changes: []source.Change{{Text: "module x\n"}}})
	assert.ErrorIs(t, err, ErrUnknownFile)
}

func TestUpdate_IncrementalCommentEditSkipsReparse(t *testing.T) {
	t.Parallel()
	ws, _ := fixtureWorkspace(t)
	gen := ws.File("b.rules").Tree.Gen
	version := ws.LinkVersion()

	// Line 7 ends in "# check"; edit the comment text only.
	changed, err := ws.Update("b.rules", UpdateOptions{Changes: []source.Change{{
		Range: &source.Range{Start: source.Position{Line: 7, Character: 33}, End: source.Position{Line: 7, Character: 35}},
		Text:  "CK",
	}}})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, gen, ws.File("b.rules").Tree.Gen)
	assert.Equal(t, version, ws.LinkVersion())
	assert.Equal(t, `  y = contains(r, "check")  # cheCK`, ws.File("b.rules").File.Line(7))
}

func TestUpdate_IncrementalMatchesFull(t *testing.T) {
	t.Parallel()
	incremental, _ := fixtureWorkspace(t)
	full, _ := fixtureWorkspace(t)

	// Retype a: AlertRule -> Rule, then add a new local on a fresh line.
	changes := []source.Change{
		{Range: &source.Range{Start: source.Position{Line: 2, Character: 10}, End: source.Position{Line: 2, Character: 19}}, Text: "Rule"},
		{Range: &source.Range{Start: source.Position{Line: 2, Character: 14}, End: source.Position{Line: 2, Character: 14}}, Text: "\n  var n : int"},
	}
	changed, err := incremental.Update("b.rules", UpdateOptions{Changes: changes})
	require.NoError(t, err)
	assert.True(t, changed)

	want := strings.Replace(mainRules, "var a : AlertRule", "var a : Rule\n  var n : int", 1)
	changed, err = full.Update("b.rules", UpdateOptions{Changes: []source.Change{{Text: want}}})
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, want, incremental.File("b.rules").File.Text())
	assert.Equal(t, fqsnLines(full.File("b.rules").Tree), fqsnLines(incremental.File("b.rules").Tree))

	// a%check now resolves to the base member.
	assert.Equal(t, "netdefs::rule::check", incremental.Query().Resolve("b.rules", 5, 9).FQSN)
}

func fqsnLines(tree *symbols.Tree) []string {
	var out []string
	tree.Walk(func(s *symbols.Symbol) {
		out = append(out, s.FQSN+"@"+s.TypeName)
	})
	return out
}

func TestRemove_PurgesTableAndLinks(t *testing.T) {
	t.Parallel()
	ws, _ := fixtureWorkspace(t)
	q := ws.Query()
	before := ws.Global("rule")[0].Ref()
	require.NotNil(t, q.Resolve("b.rules", 3, 9))

	assert.True(t, ws.Remove("a.rules"))
	assert.False(t, ws.Remove("a.rules"))

	assert.Equal(t, []string{"b.rules"}, ws.Paths())
	assert.Empty(t, ws.Global("rule"))
	assert.Equal(t, []string{"main"}, ws.GlobalKeys())
	assert.Nil(t, ws.Deref(before))
	assert.Nil(t, q.Resolve("b.rules", 3, 9))
}

func TestReparse_InvalidatesOldRefs(t *testing.T) {
	t.Parallel()
	ws, _ := fixtureWorkspace(t)
	old := ws.Global("check")[0].Ref()
	require.NotNil(t, ws.Deref(old))

	_, err := ws.Update("a.rules", UpdateOptions{Changes: []source.Change{{Text: netRules + "\n"}}})
	require.NoError(t, err)
	assert.Nil(t, ws.Deref(old), "stale generation")
	assert.NotNil(t, ws.Deref(ws.Global("check")[0].Ref()))
}

func TestGlobalOrder_ByPath(t *testing.T) {
	t.Parallel()
	ws, _ := newTestWorkspace(t, map[string]string{
		"z.rules": "subroutine shared\nend subroutine\n",
		"a.rules": "subroutine shared\nend subroutine\n",
	})
	assert.Equal(t, []string{"a.rules", "z.rules"}, globalFiles(ws, "shared"))

	_, err := ws.Update("a.rules", UpdateOptions{Changes: []source.Change{{Text: "subroutine shared\nend subroutine\n\n"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.rules", "z.rules"}, globalFiles(ws, "shared"))
}

func TestClear(t *testing.T) {
	t.Parallel()
	ws, _ := fixtureWorkspace(t)
	ws.Clear()
	assert.Empty(t, ws.Paths())
	assert.Empty(t, ws.GlobalKeys())
}
