package rulesls

import (
	"github.com/jward/rulesls/internal/runtime"
	"github.com/jward/rulesls/internal/symbols"
)

// LintTarget returns the view of path that lint scripts run against, or nil
// when the file is not indexed.
func (w *Workspace) LintTarget(path string) *runtime.Target {
	fi := w.files[path]
	if fi == nil {
		return nil
	}
	t := &runtime.Target{
		Path:  path,
		Lines: fi.File.Lines,
		Lookup: func(name string) []runtime.SymbolInfo {
			var out []runtime.SymbolInfo
			for _, s := range w.Global(name) {
				out = append(out, symbolInfo(s))
			}
			return out
		},
	}
	fi.Tree.Walk(func(s *symbols.Symbol) {
		t.Symbols = append(t.Symbols, symbolInfo(s))
	})
	return t
}

func symbolInfo(s *symbols.Symbol) runtime.SymbolInfo {
	return runtime.SymbolInfo{
		Name:      s.Name,
		Kind:      s.Kind.String(),
		FQSN:      s.FQSN,
		File:      s.File(),
		StartLine: s.StartLine,
		EndLine:   s.EndLine,
		TypeName:  s.TypeName,
	}
}
