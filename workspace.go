package rulesls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/jward/rulesls/internal/parser"
	"github.com/jward/rulesls/internal/source"
	"github.com/jward/rulesls/internal/symbols"
)

// ErrUnknownFile is returned by Update for an in-memory edit to a file the
// workspace has never loaded.
var ErrUnknownFile = errors.New("unknown file")

// FileIndex is the indexed state of one workspace file.
type FileIndex struct {
	File        *source.File
	Tree        *symbols.Tree
	Diagnostics []parser.Diagnostic
}

// Workspace owns every FileIndex and the global symbol table. It is not safe
// for concurrent use; callers serialize access (the lsp server runs all
// requests on one dispatcher goroutine).
type Workspace struct {
	logger         *slog.Logger
	readFile       func(string) ([]byte, error)
	includeMembers bool
	keywords       []CompletionItem

	files map[string]*FileIndex

	// global maps a folded name to the declarations visible from every
	// file, ordered by path and then by declaration order.
	global map[string][]symbols.Ref
	// contrib records which global keys each file added to, so a reparse or
	// removal purges exactly those entries.
	contrib map[string][]string

	gen         uint64
	linkVersion uint64
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithReadFile replaces os.ReadFile for loading file contents.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(w *Workspace) {
		if fn != nil {
			w.readFile = fn
		}
	}
}

// WithIncludeMembers makes DocumentSymbols list the members of types.
func WithIncludeMembers(include bool) Option {
	return func(w *Workspace) {
		w.includeMembers = include
	}
}

// WithKeywords sets the engine keywords offered by Complete.
func WithKeywords(items []CompletionItem) Option {
	return func(w *Workspace) {
		w.keywords = items
	}
}

// New creates an empty Workspace.
func New(opts ...Option) *Workspace {
	w := &Workspace{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		readFile: os.ReadFile,
		files:    make(map[string]*FileIndex),
		global:   make(map[string][]symbols.Ref),
		contrib:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetKeywords replaces the completion keywords, typically once the engine
// has listed them.
func (w *Workspace) SetKeywords(items []CompletionItem) {
	w.keywords = items
}

// Query returns a QueryBuilder over the current state of the workspace.
func (w *Workspace) Query() *QueryBuilder {
	return &QueryBuilder{ws: w}
}

// Init loads and parses paths using up to workers goroutines, then merges the
// results in path order. Files that fail to load or parse are left out and
// reported in the returned warnings. The error is reserved for cancellation.
func (w *Workspace) Init(ctx context.Context, paths []string, workers int) ([]string, error) {
	paths = slices.Clone(paths)
	sort.Strings(paths)
	paths = slices.Compact(paths)

	results, err := w.parseAll(ctx, paths, workers)
	if err != nil {
		return nil, fmt.Errorf("rulesls: init: %w", err)
	}

	var warnings []string
	for i, res := range results {
		if res.err != nil {
			w.logger.Warn("initialization failed", "path", paths[i], "err", res.err)
			warnings = append(warnings, fmt.Sprintf("Initialization failed for file %q: %v", paths[i], res.err))
			continue
		}
		w.install(res.index)
	}
	w.linkVersion++
	w.resolveLinks()
	w.logger.Debug("workspace initialized", "files", len(w.files), "warnings", len(warnings))
	return warnings, nil
}

// UpdateOptions selects how Update obtains the new content of a file.
type UpdateOptions struct {
	// ReadFromDisk reloads the file and skips the reparse when its content
	// fingerprint is unchanged.
	ReadFromDisk bool
	// AllowEmpty installs an empty file when ReadFromDisk finds nothing on
	// disk, for documents opened before they are first saved.
	AllowEmpty bool
	// Changes are applied in order to the in-memory buffer. A Change with a
	// nil Range replaces the whole buffer.
	Changes []source.Change
}

// Update refreshes path and reports whether its symbol tree was rebuilt.
// Load and parse failures leave the rest of the workspace intact.
func (w *Workspace) Update(path string, opts UpdateOptions) (bool, error) {
	fi := w.files[path]
	f := source.New(path)
	if fi != nil {
		f = fi.File
	}

	reparse := false
	switch {
	case opts.ReadFromDisk:
		changed, err := f.Load(w.readFile)
		switch {
		case err != nil && opts.AllowEmpty && errors.Is(err, fs.ErrNotExist):
			if fi != nil {
				return false, nil
			}
			reparse = true
		case err != nil:
			return false, fmt.Errorf("rulesls: update %s: %w", path, err)
		default:
			reparse = changed || fi == nil
		}
	case fi == nil:
		return false, fmt.Errorf("rulesls: update %s: %w", path, ErrUnknownFile)
	default:
		for _, c := range opts.Changes {
			if f.ApplyChange(c) {
				reparse = true
			}
		}
	}
	if !reparse {
		return false, nil
	}

	tree, diags, err := parser.Parse(f)
	if err != nil {
		w.remove(path)
		w.afterMutation()
		return false, fmt.Errorf("rulesls: parse %s: %w", path, err)
	}
	w.install(&FileIndex{File: f, Tree: tree, Diagnostics: diags})
	w.afterMutation()
	w.logger.Debug("file reparsed", "path", path, "symbols", tree.Len(), "diagnostics", len(diags))
	return true, nil
}

// Remove evicts path and its global table entries. Links into the file
// dereference to nil afterwards.
func (w *Workspace) Remove(path string) bool {
	if !w.remove(path) {
		return false
	}
	w.afterMutation()
	w.logger.Debug("file removed", "path", path)
	return true
}

// Clear drops every file.
func (w *Workspace) Clear() {
	clear(w.files)
	clear(w.global)
	clear(w.contrib)
	w.linkVersion++
}

func (w *Workspace) afterMutation() {
	w.linkVersion++
	w.resolveLinks()
}

// install replaces the index for fi's path with a new generation and
// reconciles that file's global table entries.
func (w *Workspace) install(fi *FileIndex) {
	path := fi.File.Path
	w.purge(path)
	w.gen++
	fi.Tree.Gen = w.gen
	w.files[path] = fi
	w.contribute(fi.Tree)
}

func (w *Workspace) remove(path string) bool {
	if _, ok := w.files[path]; !ok {
		return false
	}
	w.purge(path)
	delete(w.files, path)
	return true
}

// contribute adds the file-level declarations of tree, and the declarations
// directly inside its file-level modules, to the global table. Generated
// scopes are left out; the procedures of an anonymous interface are added in
// its place.
func (w *Workspace) contribute(tree *symbols.Tree) {
	var keys []string
	var add func(s *symbols.Symbol)
	add = func(s *symbols.Symbol) {
		if isGeneratedInterface(s) {
			for _, c := range tree.ChildrenOf(s) {
				if c.Kind.IsCallable() {
					add(c)
				}
			}
			return
		}
		if strings.HasPrefix(s.Name, "#") {
			return
		}
		key := s.Key()
		w.global[key] = append(w.global[key], s.Ref())
		keys = append(keys, key)
	}
	for _, root := range tree.Root() {
		add(root)
		if root.Kind == symbols.KindModule {
			for _, c := range tree.ChildrenOf(root) {
				add(c)
			}
		}
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)
	for _, key := range keys {
		sort.SliceStable(w.global[key], func(i, j int) bool {
			return w.global[key][i].File < w.global[key][j].File
		})
	}
	w.contrib[tree.Path] = keys
}

func (w *Workspace) purge(path string) {
	for _, key := range w.contrib[path] {
		refs := slices.DeleteFunc(w.global[key], func(r symbols.Ref) bool {
			return r.File == path
		})
		if len(refs) == 0 {
			delete(w.global, key)
		} else {
			w.global[key] = refs
		}
	}
	delete(w.contrib, path)
}

// File returns the index of path, or nil.
func (w *Workspace) File(path string) *FileIndex {
	return w.files[path]
}

// Paths returns every indexed path in lexical order.
func (w *Workspace) Paths() []string {
	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Global returns the globally visible declarations named name, in table
// order.
func (w *Workspace) Global(name string) []*symbols.Symbol {
	refs := w.global[symbols.Key(name)]
	out := make([]*symbols.Symbol, 0, len(refs))
	for _, r := range refs {
		if s := w.Deref(r); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// GlobalKeys returns the folded names in the global table, sorted.
func (w *Workspace) GlobalKeys() []string {
	keys := make([]string, 0, len(w.global))
	for k := range w.global {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Deref returns the symbol r points at, or nil when the file is gone or has
// been reparsed since r was taken.
func (w *Workspace) Deref(r symbols.Ref) *symbols.Symbol {
	if !r.Valid() {
		return nil
	}
	fi := w.files[r.File]
	if fi == nil || fi.Tree.Gen != r.Gen {
		return nil
	}
	return fi.Tree.Get(r.ID)
}

// LinkVersion increases whenever links have been re-resolved.
func (w *Workspace) LinkVersion() uint64 {
	return w.linkVersion
}
