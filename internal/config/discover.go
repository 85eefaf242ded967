package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// RuleExt matches the extensions of rule files.
var RuleExt = regexp.MustCompile(`(?i)^\.rules?$`)

// IsRuleFile reports whether name has a rule file extension.
func IsRuleFile(name string) bool {
	return RuleExt.MatchString(filepath.Ext(name))
}

// Layout is the result of Discover. Paths are absolute OS paths.
type Layout struct {
	Dirs  []string
	Files []string
}

// Discover finds the source directories and rule files of the workspace
// rooted at root. fsys must expose the same tree as root. Problems with the
// settings (missing directories) come back as warnings.
//
// With configured source directories the root is searched too, along with
// each directory that exists. Without any, every directory under the root
// that directly contains a rule file is used, skipping excluded paths.
// External source directories are absolute paths read from the OS.
func Discover(fsys fs.FS, root string, p *Project) (*Layout, []string) {
	excl := make(map[string]bool)
	if p != nil {
		for _, e := range p.ExclPaths {
			excl[path.Clean(filepath.ToSlash(e))] = true
		}
	}

	var warnings []string
	type source struct {
		fsys fs.FS
		rel  string
		abs  string
	}
	var dirs []source

	configured := p.Sources()
	var external []string
	if p != nil {
		external = p.ExtSourceDirs
	}
	if len(configured) > 0 || len(external) > 0 {
		dirs = append(dirs, source{fsys, ".", root})
		for _, d := range configured {
			rel := path.Clean(filepath.ToSlash(d))
			abs := filepath.Join(root, filepath.FromSlash(rel))
			if !isDir(fsys, rel) {
				warnings = append(warnings, fmt.Sprintf("Source directory %q specified in %q settings file does not exist", abs, FileName))
				continue
			}
			dirs = append(dirs, source{fsys, rel, abs})
		}
		for _, d := range external {
			if !filepath.IsAbs(d) || !isDir(os.DirFS(d), ".") {
				warnings = append(warnings, fmt.Sprintf("External source directory %q specified in %q settings file does not exist", d, FileName))
				continue
			}
			dirs = append(dirs, source{os.DirFS(d), ".", filepath.Clean(d)})
		}
	} else {
		err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == "." {
					return err
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if excl[p] {
				return fs.SkipDir
			}
			if containsRules(fsys, p) {
				dirs = append(dirs, source{fsys, p, filepath.Join(root, filepath.FromSlash(p))})
			}
			return nil
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not scan workspace %q: %v", root, err))
		}
	}

	layout := &Layout{}
	seen := make(map[string]bool)
	for _, src := range dirs {
		if seen[src.abs] {
			continue
		}
		seen[src.abs] = true
		layout.Dirs = append(layout.Dirs, src.abs)
		entries, err := fs.ReadDir(src.fsys, src.rel)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not read source directory %q: %v", src.abs, err))
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !IsRuleFile(e.Name()) {
				continue
			}
			abs := filepath.Join(src.abs, e.Name())
			if p.Excluded(root, abs) {
				continue
			}
			layout.Files = append(layout.Files, abs)
		}
	}
	return layout, warnings
}

// Excluded reports whether the rule file abs is filtered out by the
// project's excl_paths (the file or one of its directories, relative to
// root) or excl_suffixes.
func (p *Project) Excluded(root, abs string) bool {
	if p == nil {
		return false
	}
	if hasSuffix(abs, p.ExclSuffixes) {
		return true
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	for _, e := range p.ExclPaths {
		e = path.Clean(filepath.ToSlash(e))
		if rel == e || strings.HasPrefix(rel, e+"/") {
			return true
		}
	}
	return false
}

func isDir(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && info.IsDir()
}

func containsRules(fsys fs.FS, dir string) bool {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && IsRuleFile(e.Name()) {
			return true
		}
	}
	return false
}

func hasSuffix(p string, suffixes []string) bool {
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(p, s) {
			return true
		}
	}
	return false
}

// ReadEngineConfig returns the contents of the project's engine YAML, or ""
// when none is configured.
func ReadEngineConfig(fsys fs.FS, p *Project) (string, error) {
	if p == nil || p.EngineConfig == "" {
		return "", nil
	}
	name := path.Clean(filepath.ToSlash(p.EngineConfig))
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) && filepath.IsAbs(p.EngineConfig) {
		data, err = os.ReadFile(p.EngineConfig)
	}
	if err != nil {
		return "", fmt.Errorf("read engine config: %w", err)
	}
	return string(data), nil
}
