package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/risor-io/risor/object"
)

// makeSymbolsFn creates the "symbols" host function.
//
// symbols() → []map
func makeSymbolsFn(t *Target) *object.Builtin {
	return object.NewBuiltin("symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("symbols", 0, len(args))
		}
		return symbolsToList(t.Symbols)
	})
}

// makeLookupFn creates the "lookup" host function. Names are matched the
// way the rule language matches them, ignoring case.
//
// lookup(name) → []map
func makeLookupFn(t *Target) *object.Builtin {
	return object.NewBuiltin("lookup", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("lookup", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("lookup: %v", err)
		}
		if t.Lookup == nil {
			return object.NewList([]object.Object{})
		}
		return symbolsToList(t.Lookup(name))
	})
}

// makeLinesFn creates the "lines" host function.
//
// lines() → []string
func makeLinesFn(t *Target) *object.Builtin {
	return object.NewBuiltin("lines", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("lines", 0, len(args))
		}
		items := make([]object.Object, len(t.Lines))
		for i, l := range t.Lines {
			items[i] = object.NewString(l)
		}
		return object.NewList(items)
	})
}

// findings collects report() calls. Scripts may run host functions from
// goroutines started with Risor's go statement.
type findings struct {
	mu     sync.Mutex
	script string
	items  []Finding
}

func (f *findings) add(line int, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, Finding{Line: line, Message: msg, Source: FindingSource, Script: f.script})
}

// makeReportFn creates the "report" host function. line is 1-based like
// the start_line of a symbol; 0 or less pins the finding to the first line.
//
// report(line, message)
func makeReportFn(f *findings) *object.Builtin {
	return object.NewBuiltin("report", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("report", 2, len(args))
		}
		line, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("report: line: %v", err)
		}
		msg, err := toString(args[1])
		if err != nil {
			return object.Errorf("report: message: %v", err)
		}
		f.add(max(int(line)-1, 0), msg)
		return object.Nil
	})
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// symbolsToList converts symbols to a Risor list of maps.
func symbolsToList(syms []SymbolInfo) object.Object {
	results := make([]object.Object, 0, len(syms))
	for _, sym := range syms {
		results = append(results, object.NewMap(map[string]object.Object{
			"name":       object.NewString(sym.Name),
			"kind":       object.NewString(sym.Kind),
			"fqsn":       object.NewString(sym.FQSN),
			"file":       object.NewString(sym.File),
			"start_line": object.NewInt(int64(sym.StartLine)),
			"end_line":   object.NewInt(int64(sym.EndLine)),
			"type_name":  object.NewString(sym.TypeName),
		}))
	}
	return object.NewList(results)
}
