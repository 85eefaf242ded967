package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tCONTAINER\tFILE\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", s.Name, s.Kind, s.Container, s.File, s.StartLine)
	}
	tw.Flush()
}

func formatSignatureText(w io.Writer, sig CLISignature) {
	fmt.Fprintln(w, sig.Label)
	if sig.Active >= 0 && sig.Active < len(sig.Params) {
		fmt.Fprintf(w, "active parameter: %s\n", sig.Params[sig.Active])
	}
	if sig.Doc != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sig.Doc)
	}
}

// formatDiagnosticsText prints one "file:line: severity: message" line per
// diagnostic with the severity colored.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		sev := d.Severity
		switch d.Severity {
		case severityError:
			sev = errorColor.Sprint(sev)
		case severityWarning:
			sev = warningColor.Sprint(sev)
		case severityInfo:
			sev = infoColor.Sprint(sev)
		}
		code := ""
		if d.Code != 0 {
			code = fmt.Sprintf(" [%d]", d.Code)
		}
		fmt.Fprintf(w, "%s:%d: %s: %s%s (%s)\n", d.File, d.Line, sev, d.Message, code, d.Source)
	}
}

func formatIndexText(w io.Writer, s CLIIndexSummary) {
	fmt.Fprintf(w, "Root: %s\n", s.Root)
	fmt.Fprintf(w, "Directories: %d\n", s.Dirs)
	fmt.Fprintf(w, "Files: %d\n", s.Files)
	fmt.Fprintf(w, "Symbols: %d\n", s.Symbols)
	fmt.Fprintf(w, "Diagnostics: %d\n", s.Diagnostics)
	if len(s.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range s.Warnings {
			fmt.Fprintf(w, "  %s\n", warn)
		}
	}
}

func formatExportText(w io.Writer, e CLIExport) {
	fmt.Fprintf(w, "Database: %s\n", e.Database)
	fmt.Fprintf(w, "Files: %d (%d unchanged)\n", e.Files, e.Unchanged)
	fmt.Fprintf(w, "Symbols: %d\n", e.Symbols)
	fmt.Fprintf(w, "References: %d\n", e.References)
}

// formatRenameText prints the diff when there is one, otherwise the edits
// grouped by file.
func formatRenameText(w io.Writer, r CLIRename) {
	if r.Diff != "" {
		fmt.Fprint(w, r.Diff)
		return
	}
	paths := make([]string, 0, len(r.Files))
	for p := range r.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		for _, e := range r.Files[p] {
			fmt.Fprintf(w, "%s:%d:%d-%d -> %s\n", p, e.Line, e.StartCol, e.EndCol, e.NewText)
		}
	}
}

func formatStoredSymbolsText(w io.Writer, syms []CLIStoredSymbol) {
	for i, s := range syms {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s) %s:%d-%d\n", s.FQSN, s.Kind, s.File, s.StartLine, s.EndLine)
		if s.Link != "" {
			fmt.Fprintf(w, "  link: %s\n", s.Link)
		}
		for _, c := range s.Children {
			fmt.Fprintf(w, "  member %s (%s) line %d\n", c.Name, c.Kind, c.StartLine)
		}
		for _, r := range s.References {
			fmt.Fprintf(w, "  ref %s:%d:%d\n", r.File, r.StartLine, r.StartCol)
		}
	}
}

func formatStoredRefsText(w io.Writer, refs []CLIStoredReference) {
	for _, r := range refs {
		fmt.Fprintf(w, "%s:%d:%d %s\n", r.File, r.StartLine, r.StartCol, r.Symbol)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case CLISignature:
		formatSignatureText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLIIndexSummary:
		formatIndexText(w, v)
	case CLIExport:
		formatExportText(w, v)
	case CLIRename:
		formatRenameText(w, v)
	case []CLIStoredSymbol:
		formatStoredSymbolsText(w, v)
	case []CLIStoredReference:
		formatStoredRefsText(w, v)
	case nil:
		// No output for nil results (e.g. signature outside a call).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
