package lsp

import (
	"sort"
	"strings"

	"fortio.org/safecast"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/jward/rulesls"
	"github.com/jward/rulesls/internal/source"
)

// pathOf returns the file path of a file:// URI. Other schemes have none.
func pathOf(u uri.URI) (string, bool) {
	if !strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return "", false
	}
	return u.Filename(), true
}

// u32 narrows a non-negative index for the wire. Negative values clamp to 0.
func u32(n int) uint32 {
	v, err := safecast.Convert[uint32](n)
	if err != nil {
		return 0
	}
	return v
}

// lineText returns line n of path as the workspace holds it.
func lineText(ws *rulesls.Workspace, path string, n int) string {
	fi := ws.File(path)
	if fi == nil {
		return ""
	}
	return fi.File.Line(n)
}

// byteCol converts a client position on path to a 0-based byte column.
func byteCol(ws *rulesls.Workspace, path string, pos protocol.Position) (line, col int) {
	line = int(pos.Line)
	return line, source.ByteCol(lineText(ws, path, line), int(pos.Character))
}

func toPosition(ws *rulesls.Workspace, path string, line, col int) protocol.Position {
	return protocol.Position{
		Line:      u32(line),
		Character: u32(source.UTF16Col(lineText(ws, path, line), col)),
	}
}

func toLocation(ws *rulesls.Workspace, loc *rulesls.Location) protocol.Location {
	return protocol.Location{
		URI: uri.File(loc.File),
		Range: protocol.Range{
			Start: toPosition(ws, loc.File, loc.StartLine, loc.StartCol),
			End:   toPosition(ws, loc.File, loc.EndLine, loc.EndCol),
		},
	}
}

func spanRange(ws *rulesls.Workspace, path string, sp rulesls.Span) protocol.Range {
	return protocol.Range{
		Start: toPosition(ws, path, sp.Line, sp.StartCol),
		End:   toPosition(ws, path, sp.Line, sp.EndCol),
	}
}

// toChange converts a client edit. Positions stay in UTF-16 units; the
// buffer converts them against the line they land on.
func toChange(c contentChange) source.Change {
	if c.Range == nil {
		return source.Change{Text: c.Text}
	}
	return source.Change{
		Range: &source.Range{
			Start: source.Position{Line: int(c.Range.Start.Line), Character: int(c.Range.Start.Character)},
			End:   source.Position{Line: int(c.Range.End.Line), Character: int(c.Range.End.Character)},
		},
		Text: c.Text,
	}
}

func toSymbolInformation(ws *rulesls.Workspace, syms []rulesls.OutlineSymbol) []protocol.SymbolInformation {
	out := make([]protocol.SymbolInformation, 0, len(syms))
	for _, s := range syms {
		loc := s.Location
		out = append(out, protocol.SymbolInformation{
			Name:          s.Name,
			Kind:          protocol.SymbolKind(s.Kind),
			Location:      toLocation(ws, &loc),
			ContainerName: s.ContainerName,
		})
	}
	return out
}

// referenceLocations flattens a reference search in path order.
func referenceLocations(ws *rulesls.Workspace, refs *rulesls.References) []protocol.Location {
	paths := make([]string, 0, len(refs.Files))
	for p := range refs.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var out []protocol.Location
	for _, p := range paths {
		for _, sp := range refs.Files[p] {
			out = append(out, protocol.Location{URI: uri.File(p), Range: spanRange(ws, p, sp)})
		}
	}
	return out
}

func toWorkspaceEdit(ws *rulesls.Workspace, files map[string][]rulesls.TextEdit) *protocol.WorkspaceEdit {
	changes := make(map[protocol.DocumentURI][]protocol.TextEdit, len(files))
	for path, edits := range files {
		list := make([]protocol.TextEdit, 0, len(edits))
		for _, e := range edits {
			list = append(list, protocol.TextEdit{Range: spanRange(ws, path, e.Span), NewText: e.NewText})
		}
		changes[uri.File(path)] = list
	}
	return &protocol.WorkspaceEdit{Changes: changes}
}

func toSignatureHelp(sig *rulesls.Signature) *protocol.SignatureHelp {
	info := protocol.SignatureInformation{Label: sig.Label}
	if sig.Doc != "" {
		info.Documentation = sig.Doc
	}
	for _, p := range sig.Params {
		pi := protocol.ParameterInformation{Label: p.Label}
		if p.Doc != "" {
			pi.Documentation = p.Doc
		}
		info.Parameters = append(info.Parameters, pi)
	}
	return &protocol.SignatureHelp{
		Signatures:      []protocol.SignatureInformation{info},
		ActiveParameter: u32(sig.Active),
	}
}

func toHover(h *rulesls.Hover) *protocol.Hover {
	var b strings.Builder
	for i, c := range h.Contents {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("```rules\n")
		b.WriteString(c)
		b.WriteString("\n```\n")
	}
	return &protocol.Hover{Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: b.String()}}
}

func toCompletionList(items []rulesls.CompletionItem) *protocol.CompletionList {
	list := &protocol.CompletionList{Items: make([]protocol.CompletionItem, 0, len(items))}
	for _, it := range items {
		ci := protocol.CompletionItem{
			Label:      it.Label,
			Kind:       protocol.CompletionItemKindKeyword,
			Detail:     it.Detail,
			Deprecated: it.Deprecated,
		}
		switch {
		case it.Doc == "":
		case it.Markdown:
			ci.Documentation = protocol.MarkupContent{Kind: protocol.Markdown, Value: it.Doc}
		default:
			ci.Documentation = it.Doc
		}
		list.Items = append(list.Items, ci)
	}
	return list
}
