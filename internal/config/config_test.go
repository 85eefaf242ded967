package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/liamg/memoryfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFS(t *testing.T, files map[string]string) *memoryfs.FS {
	t.Helper()
	fsys := memoryfs.New()
	for name, content := range files {
		if dir := filepath.Dir(name); dir != "." {
			require.NoError(t, fsys.MkdirAll(dir, 0o700))
		}
		require.NoError(t, fsys.WriteFile(name, []byte(content), 0o600))
	}
	return fsys
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 4, s.NThreads)
	assert.Equal(t, SyncFull, s.SyncType)
	assert.Equal(t, "suricata", s.EngineBinary)
	assert.False(t, s.NotifyInit)
	require.NoError(t, s.Validate())

	s.NThreads = 0
	assert.Error(t, s.Validate())
	s = DefaultSettings()
	s.SyncType = 3
	assert.Error(t, s.Validate())
}

func TestLoadProject_JSON(t *testing.T) {
	fsys := newFS(t, map[string]string{
		".rulesls": `{"source_dirs": ["rules"], "excl_suffixes": [".bak.rules"], "engine_config": "engine.yaml"}`,
	})
	p, name, err := LoadProject(fsys)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, ".rulesls", name)
	assert.Equal(t, []string{"rules"}, p.SourceDirs)
	assert.Equal(t, []string{".bak.rules"}, p.ExclSuffixes)
	assert.Equal(t, "engine.yaml", p.EngineConfig)
}

func TestLoadProject_YAMLAndTOML(t *testing.T) {
	fsys := newFS(t, map[string]string{
		".rulesls.yaml": "mod_dirs:\n  - legacy\nlint_scripts:\n  - lint/names.risor\n",
	})
	p, name, err := LoadProject(fsys)
	require.NoError(t, err)
	assert.Equal(t, ".rulesls.yaml", name)
	assert.Equal(t, []string{"legacy"}, p.Sources())
	assert.Equal(t, []string{"lint/names.risor"}, p.LintScripts)

	fsys = newFS(t, map[string]string{
		".rulesls.toml": "source_dirs = [\"a\", \"b\"]\nexcl_paths = [\"a/old\"]\n",
	})
	p, name, err = LoadProject(fsys)
	require.NoError(t, err)
	assert.Equal(t, ".rulesls.toml", name)
	assert.Equal(t, []string{"a", "b"}, p.Sources())
	assert.Equal(t, []string{"a/old"}, p.ExclPaths)
}

func TestLoadProject_Missing(t *testing.T) {
	p, name, err := LoadProject(newFS(t, nil))
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, name)
	assert.Nil(t, p.Sources())
}

func TestLoadProject_Invalid(t *testing.T) {
	fsys := newFS(t, map[string]string{".rulesls": "{source_dirs: [unterminated"})
	_, name, err := LoadProject(fsys)
	require.Error(t, err)
	assert.Equal(t, ".rulesls", name)
}

func TestDiscover_WalksWithoutSettings(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"top.rules":          "",
		"net/a.rules":        "",
		"net/b.RULE":         "",
		"net/readme.md":      "",
		"docs/notes.txt":     "",
		"vendor/skip.rules":  "",
		"deep/x/y/z.rules":   "",
		"deep/x/not-a-rules": "",
	})
	layout, warnings := Discover(fsys, "/ws", &Project{ExclPaths: []string{"vendor"}})
	assert.Empty(t, warnings)
	assert.ElementsMatch(t, []string{"/ws", "/ws/net", "/ws/deep/x/y"}, layout.Dirs)
	assert.ElementsMatch(t, []string{
		"/ws/top.rules",
		"/ws/net/a.rules",
		"/ws/net/b.RULE",
		"/ws/deep/x/y/z.rules",
	}, layout.Files)
}

func TestDiscover_ConfiguredDirs(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"root.rules":         "",
		"rules/a.rules":      "",
		"rules/a.bak.rules":  "",
		"rules/old.rules":    "",
		"rules/sub/c.rules":  "",
		"other/ignored.rule": "",
	})
	p := &Project{
		SourceDirs:   []string{"rules", "missing"},
		ExclPaths:    []string{"rules/old.rules"},
		ExclSuffixes: []string{".bak.rules"},
	}
	layout, warnings := Discover(fsys, "/ws", p)
	assert.Equal(t, []string{"/ws", "/ws/rules"}, layout.Dirs)
	assert.ElementsMatch(t, []string{"/ws/root.rules", "/ws/rules/a.rules"}, layout.Files)
	require.Len(t, warnings, 1)
	assert.Equal(t, `Source directory "/ws/missing" specified in ".rulesls" settings file does not exist`, warnings[0])
}

func TestDiscover_ExternalDirs(t *testing.T) {
	ext := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ext, "shared.rules"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(ext, "notes.txt"), nil, 0o600))

	missing := filepath.Join(ext, "nope")
	fsys := newFS(t, map[string]string{"local.rules": ""})
	layout, warnings := Discover(fsys, "/ws", &Project{ExtSourceDirs: []string{ext, missing}})

	assert.Equal(t, []string{"/ws", ext}, layout.Dirs)
	assert.ElementsMatch(t, []string{"/ws/local.rules", filepath.Join(ext, "shared.rules")}, layout.Files)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "External source directory")
	assert.Contains(t, warnings[0], missing)
}

func TestIsRuleFile(t *testing.T) {
	assert.True(t, IsRuleFile("a.rules"))
	assert.True(t, IsRuleFile("a.RULES"))
	assert.True(t, IsRuleFile("a.rule"))
	assert.False(t, IsRuleFile("a.rulesx"))
	assert.False(t, IsRuleFile("rules"))
}

func TestReadEngineConfig(t *testing.T) {
	fsys := newFS(t, map[string]string{"conf/engine.yaml": "%YAML 1.1\n---\nvars: {}\n"})

	got, err := ReadEngineConfig(fsys, &Project{EngineConfig: "conf/engine.yaml"})
	require.NoError(t, err)
	assert.Contains(t, got, "vars")

	got, err = ReadEngineConfig(fsys, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadEngineConfig(fsys, &Project{EngineConfig: "nope.yaml"})
	assert.Error(t, err)
}

func TestProjectExcluded(t *testing.T) {
	p := &Project{
		ExclPaths:    []string{"rules/old", "rules/skip.rules"},
		ExclSuffixes: []string{".bak.rules"},
	}
	assert.True(t, p.Excluded("/ws", "/ws/rules/old/a.rules"), "inside excluded dir")
	assert.True(t, p.Excluded("/ws", "/ws/rules/skip.rules"), "excluded file")
	assert.True(t, p.Excluded("/ws", "/ws/rules/a.bak.rules"), "excluded suffix")
	assert.True(t, p.Excluded("/ws", "/ext/a.bak.rules"), "suffix outside the root")
	assert.False(t, p.Excluded("/ws", "/ws/rules/older.rules"))
	assert.False(t, p.Excluded("/ws", "/ws/rules/a.rules"))
	assert.False(t, p.Excluded("/ws", "/ext/rules/old/a.rules"), "paths are relative to the root")

	var none *Project
	assert.False(t, none.Excluded("/ws", "/ws/a.bak.rules"))
}
