package rulesls

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/jward/rulesls/internal/parser"
	"github.com/jward/rulesls/internal/symbols"
)

// OutlineKindOf maps a symbol kind to its outline kind. Callables declared
// inside a type show as methods.
func OutlineKindOf(k symbols.Kind, inType bool) OutlineKind {
	switch k {
	case symbols.KindModule:
		return OutlineModule
	case symbols.KindSubroutine, symbols.KindFunction:
		if inType {
			return OutlineMethod
		}
		return OutlineFunction
	case symbols.KindType:
		return OutlineClass
	case symbols.KindInterface:
		return OutlineInterface
	case symbols.KindVariable:
		return OutlineVariable
	case symbols.KindMethod:
		return OutlineMethod
	}
	return OutlineFile
}

// DocumentSymbols returns the outline of path: its named scopes, the
// procedures of anonymous interfaces and, when the workspace was built
// WithIncludeMembers, the members of each type.
func (q *QueryBuilder) DocumentSymbols(path string) []OutlineSymbol {
	fi := q.ws.files[path]
	if fi == nil {
		return nil
	}
	var out []OutlineSymbol
	for _, scope := range fi.Tree.Scopes() {
		if strings.HasPrefix(scope.Name, "#") {
			continue
		}
		segs := strings.Split(scope.FQSN, symbols.Separator)
		kind := OutlineKindOf(scope.Kind, false)
		if len(segs) > 2 && !strings.HasPrefix(segs[1], parser.GeneratedInterfacePrefix) {
			continue
		}
		if isGeneratedInterface(scope.ParentSymbol()) {
			kind = OutlineInterface
		}
		out = append(out, OutlineSymbol{
			Name:          scope.Name,
			Kind:          kind,
			ContainerName: container(segs),
			Location:      lineRange(path, scope.StartLine-1, scope.EndLine-1),
		})
		if scope.Kind == symbols.KindType && q.ws.includeMembers {
			for _, child := range fi.Tree.ChildrenOf(scope) {
				out = append(out, OutlineSymbol{
					Name:          child.Name,
					Kind:          OutlineKindOf(child.Kind, true),
					ContainerName: scope.Name,
					Location:      lineRange(path, child.StartLine-1, child.StartLine-1),
				})
			}
		}
	}
	return out
}

// WorkspaceSymbols returns the globally visible declarations whose name
// fuzzy-matches query, sorted by name.
func (q *QueryBuilder) WorkspaceSymbols(query string) []OutlineSymbol {
	var out []OutlineSymbol
	for _, key := range q.ws.GlobalKeys() {
		if !fuzzy.MatchFold(query, key) {
			continue
		}
		for _, r := range q.ws.global[key] {
			s := q.ws.Deref(r)
			if s == nil {
				continue
			}
			kind := OutlineKindOf(s.Kind, false)
			if isGeneratedInterface(s.ParentSymbol()) {
				kind = OutlineInterface
			}
			out = append(out, OutlineSymbol{
				Name:          s.Name,
				Kind:          kind,
				ContainerName: container(strings.Split(s.FQSN, symbols.Separator)),
				Location:      lineRange(s.File(), s.StartLine-1, s.EndLine-1),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// container is the first FQSN segment, unless it names a generated scope.
func container(segs []string) string {
	if len(segs) > 1 && !strings.HasPrefix(segs[0], "#") {
		return segs[0]
	}
	return ""
}

func lineRange(path string, start, end int) Location {
	return Location{File: path, StartLine: start, EndLine: end}
}
