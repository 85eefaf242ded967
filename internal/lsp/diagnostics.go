package lsp

import (
	"go.lsp.dev/protocol"

	"github.com/jward/rulesls/internal/checker"
	"github.com/jward/rulesls/internal/parser"
	"github.com/jward/rulesls/internal/runtime"
	"github.com/jward/rulesls/internal/source"
)

// ParserSource is the diagnostic source of parse problems.
const ParserSource = "rulesls"

func lineRange(f *source.File, n, start, end int) protocol.Range {
	text := f.Line(n)
	if end <= start || end > len(text) {
		start, end = 0, len(text)
	}
	return protocol.Range{
		Start: protocol.Position{Line: u32(n), Character: u32(source.UTF16Col(text, start))},
		End:   protocol.Position{Line: u32(n), Character: u32(source.UTF16Col(text, end))},
	}
}

func parserDiagnostics(f *source.File, diags []parser.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		sev := protocol.DiagnosticSeverityWarning
		if d.Severity == parser.SeverityError {
			sev = protocol.DiagnosticSeverityError
		}
		out = append(out, protocol.Diagnostic{
			Range:    lineRange(f, max(d.Line-1, 0), 0, 0),
			Severity: sev,
			Source:   ParserSource,
			Message:  d.Message,
		})
	}
	return out
}

func engineDiagnostics(f *source.File, res *checker.Result) []protocol.Diagnostic {
	if res == nil {
		return nil
	}
	var out []protocol.Diagnostic
	add := func(recs []checker.Record, sev protocol.DiagnosticSeverity) {
		for _, r := range recs {
			out = append(out, recordDiagnostic(f, r, sev))
		}
	}
	add(res.Errors, protocol.DiagnosticSeverityError)
	add(res.Warnings, protocol.DiagnosticSeverityWarning)
	add(res.Info, protocol.DiagnosticSeverityInformation)
	return out
}

func recordDiagnostic(f *source.File, r checker.Record, sev protocol.DiagnosticSeverity) protocol.Diagnostic {
	line, start, end := checker.Locate(f.Lines, r)
	d := protocol.Diagnostic{
		Range:    lineRange(f, line, start, end),
		Severity: sev,
		Source:   r.Source,
		Message:  r.Message,
	}
	if r.Code != 0 {
		d.Code = r.Code
	}
	return d
}

func lintDiagnostics(f *source.File, found []runtime.Finding) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(found))
	for _, fd := range found {
		d := protocol.Diagnostic{
			Range:    lineRange(f, fd.Line, 0, 0),
			Severity: protocol.DiagnosticSeverityWarning,
			Source:   fd.Source,
			Message:  fd.Message,
		}
		if fd.Script != "" {
			d.Code = fd.Script
		}
		out = append(out, d)
	}
	return out
}
