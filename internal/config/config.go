// Package config holds the server launch settings and the per-project
// settings file, and discovers the rule files of a workspace.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Text document sync kinds.
const (
	SyncFull        = 1
	SyncIncremental = 2
)

// Settings are the launch settings of the language server.
type Settings struct {
	NThreads       int
	NotifyInit     bool
	SyncType       int
	EngineBinary   string
	IncludeMembers bool
	Watch          bool
}

// DefaultSettings returns the settings used when no flag overrides them.
func DefaultSettings() Settings {
	return Settings{
		NThreads:     4,
		SyncType:     SyncFull,
		EngineBinary: "suricata",
	}
}

// Validate checks the settings a caller may have overridden.
func (s Settings) Validate() error {
	if s.NThreads < 1 {
		return fmt.Errorf("nthreads must be at least 1, got %d", s.NThreads)
	}
	if s.SyncType != SyncFull && s.SyncType != SyncIncremental {
		return fmt.Errorf("sync type must be %d (full) or %d (incremental), got %d", SyncFull, SyncIncremental, s.SyncType)
	}
	return nil
}

// Project is the settings file found at the workspace root.
type Project struct {
	ExclPaths     []string `json:"excl_paths" yaml:"excl_paths" toml:"excl_paths"`
	SourceDirs    []string `json:"source_dirs" yaml:"source_dirs" toml:"source_dirs"`
	ExtSourceDirs []string `json:"ext_source_dirs" yaml:"ext_source_dirs" toml:"ext_source_dirs"`
	// ModDirs is the legacy name of SourceDirs, read only when SourceDirs is
	// empty.
	ModDirs      []string `json:"mod_dirs" yaml:"mod_dirs" toml:"mod_dirs"`
	ExclSuffixes []string `json:"excl_suffixes" yaml:"excl_suffixes" toml:"excl_suffixes"`
	LintScripts  []string `json:"lint_scripts" yaml:"lint_scripts" toml:"lint_scripts"`
	// EngineConfig is a path, relative to the root, to an engine YAML that
	// replaces the built-in one.
	EngineConfig string `json:"engine_config" yaml:"engine_config" toml:"engine_config"`
}

// Sources returns the configured source directories, falling back to the
// legacy key.
func (p *Project) Sources() []string {
	if p == nil {
		return nil
	}
	if len(p.SourceDirs) > 0 {
		return p.SourceDirs
	}
	return p.ModDirs
}

// FileName is the settings file name the messages refer to.
const FileName = ".rulesls"

// projectFiles are tried in order; the first one that exists wins.
var projectFiles = []string{FileName, FileName + ".yaml", FileName + ".toml"}

// LoadProject reads the settings file at the root of fsys. It returns a nil
// Project and an empty name when there is none.
func LoadProject(fsys fs.FS) (*Project, string, error) {
	for _, name := range projectFiles {
		data, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, name, fmt.Errorf("read %s: %w", name, err)
		}
		p, err := decodeProject(name, data)
		if err != nil {
			return nil, name, fmt.Errorf("parse %s: %w", name, err)
		}
		return p, name, nil
	}
	return nil, "", nil
}

// decodeProject decodes TOML by extension and everything else as YAML,
// which also accepts the JSON form of the settings file.
func decodeProject(name string, data []byte) (*Project, error) {
	var p Project
	if path.Ext(name) == ".toml" {
		if _, err := toml.Decode(string(data), &p); err != nil {
			return nil, err
		}
		return &p, nil
	}
	if strings.TrimSpace(string(data)) == "" {
		return &p, nil
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
