package runtime

import (
	"context"
	"errors"
	"fmt"
)

// FindingSource is the diagnostic source of script findings.
const FindingSource = "rulesls lint"

// SymbolInfo is the script-facing view of one declaration. Lines are
// 1-based.
type SymbolInfo struct {
	Name      string
	Kind      string
	FQSN      string
	File      string
	StartLine int
	EndLine   int
	TypeName  string
}

// Target is the file a lint script runs against.
type Target struct {
	Path    string
	Lines   []string
	Symbols []SymbolInfo
	// Lookup returns the global table entries for a name.
	Lookup func(name string) []SymbolInfo
}

// Finding is one report() call. Line is 0-based.
type Finding struct {
	Line    int
	Message string
	Source  string
	Script  string
}

// Lint runs each script against t and returns the findings of all of them.
// A failing script does not stop the others; its error is joined into the
// returned error.
func (r *Runtime) Lint(ctx context.Context, scripts []string, t *Target) ([]Finding, error) {
	var out []Finding
	var errs []error
	for _, script := range scripts {
		src, err := r.LoadScript(script)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		found, err := r.lint(ctx, src, script, t)
		out = append(out, found...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// LintSource runs inline script source against t.
func (r *Runtime) LintSource(ctx context.Context, source string, t *Target) ([]Finding, error) {
	return r.lint(ctx, source, "<inline>", t)
}

// lint keeps the findings reported before a script failed.
func (r *Runtime) lint(ctx context.Context, source, label string, t *Target) ([]Finding, error) {
	if t == nil {
		return nil, fmt.Errorf("runtime: script %s: no target", label)
	}
	f := &findings{script: label}
	err := r.eval(ctx, source, label, map[string]any{
		"file_path": t.Path,
		"symbols":   makeSymbolsFn(t),
		"lookup":    makeLookupFn(t),
		"lines":     makeLinesFn(t),
		"report":    makeReportFn(f),
	})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items, err
}
