package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/jward/rulesls"
)

var (
	flagDiff  bool
	flagWrite bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the symbol index",
	Long:  "Index the workspace containing the given file and run one editor query against it. All line and column numbers are 0-based; columns count bytes.",
}

func init() {
	queryCmd.AddCommand(definitionCmd)
	queryCmd.AddCommand(referencesCmd)
	queryCmd.AddCommand(signatureCmd)
	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(workspaceSymbolsCmd)
	queryCmd.AddCommand(renameCmd)

	renameCmd.Flags().BoolVar(&flagDiff, "diff", false, "print a diff of the edited files instead of the edits")
	renameCmd.Flags().BoolVar(&flagWrite, "write", false, "apply the edits to the files on disk")
}

// --- Helpers ---

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// position is a parsed <file> <line> <col> triple.
type position struct {
	file      string
	line, col int
}

func parsePosition(args []string) (position, error) {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return position{}, err
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return position{}, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return position{}, err
	}
	return position{file: file, line: line, col: col}, nil
}

// loadFor indexes the workspace containing file and makes sure file itself
// is loaded, even when discovery excludes it. The returned func closes the
// log file.
func loadFor(ctx context.Context, file string) (*loaded, func(), error) {
	logger, closeLog, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	l, err := loadWorkspace(ctx, findRoot(filepath.Dir(file)), logger)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	if l.ws.File(file) == nil {
		if _, err := l.ws.Update(file, rulesls.UpdateOptions{ReadFromDisk: true}); err != nil {
			closeLog()
			return nil, nil, err
		}
	}
	return l, closeLog, nil
}

func locationToCLI(loc *rulesls.Location) CLILocation {
	return CLILocation{
		File:      loc.File,
		StartLine: loc.StartLine,
		StartCol:  loc.StartCol,
		EndLine:   loc.EndLine,
		EndCol:    loc.EndCol,
	}
}

func outlineToCLI(syms []rulesls.OutlineSymbol) []CLISymbol {
	out := make([]CLISymbol, 0, len(syms))
	for _, s := range syms {
		out = append(out, CLISymbol{
			Name:      s.Name,
			Kind:      outlineKindName(s.Kind),
			Container: s.ContainerName,
			File:      s.Location.File,
			StartLine: s.Location.StartLine,
			EndLine:   s.Location.EndLine,
		})
	}
	return out
}

func outlineKindName(k rulesls.OutlineKind) string {
	switch k {
	case rulesls.OutlineModule:
		return "module"
	case rulesls.OutlineClass:
		return "class"
	case rulesls.OutlineMethod:
		return "method"
	case rulesls.OutlineInterface:
		return "interface"
	case rulesls.OutlineFunction:
		return "function"
	case rulesls.OutlineVariable:
		return "variable"
	default:
		return "file"
	}
}

// --- Subcommands ---

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find where the name under the cursor is declared",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parsePosition(args)
		if err != nil {
			return outputError("definition", err)
		}
		l, closeLog, err := loadFor(cmd.Context(), pos.file)
		if err != nil {
			return outputError("definition", err)
		}
		defer closeLog()
		locs := []CLILocation{}
		if loc := l.ws.Query().DefinitionAt(pos.file, pos.line, pos.col); loc != nil {
			locs = append(locs, locationToCLI(loc))
		}
		return outputResult(CLIResult{Command: "definition", Results: locs})
	},
}

var referencesCmd = &cobra.Command{
	Use:   "references <file> <line> <col>",
	Short: "Find every occurrence of the symbol under the cursor",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parsePosition(args)
		if err != nil {
			return outputError("references", err)
		}
		l, closeLog, err := loadFor(cmd.Context(), pos.file)
		if err != nil {
			return outputError("references", err)
		}
		defer closeLog()
		q := l.ws.Query()
		locs := []CLILocation{}
		if sym := q.Resolve(pos.file, pos.line, pos.col); sym != nil {
			locs = referencesToCLI(q.ReferencesTo(sym))
		}
		total := len(locs)
		return outputResult(CLIResult{Command: "references", Results: locs, TotalCount: &total})
	},
}

func referencesToCLI(refs *rulesls.References) []CLILocation {
	paths := make([]string, 0, len(refs.Files))
	for p := range refs.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	locs := []CLILocation{}
	for _, p := range paths {
		for _, sp := range refs.Files[p] {
			locs = append(locs, CLILocation{File: p, StartLine: sp.Line, StartCol: sp.StartCol, EndLine: sp.Line, EndCol: sp.EndCol})
		}
	}
	return locs
}

var signatureCmd = &cobra.Command{
	Use:   "signature <file> <line> <col>",
	Short: "Show the signature of the call enclosing the cursor",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parsePosition(args)
		if err != nil {
			return outputError("signature", err)
		}
		l, closeLog, err := loadFor(cmd.Context(), pos.file)
		if err != nil {
			return outputError("signature", err)
		}
		defer closeLog()
		sig := l.ws.Query().SignatureAt(pos.file, pos.line, pos.col)
		if sig == nil {
			return outputResult(CLIResult{Command: "signature"})
		}
		out := CLISignature{Label: sig.Label, Doc: sig.Doc, Active: sig.Active, Params: []string{}}
		for _, p := range sig.Params {
			out.Params = append(out.Params, p.Label)
		}
		return outputResult(CLIResult{Command: "signature", Results: out})
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "List the outline of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := resolveFilePath(args[0])
		if err != nil {
			return outputError("symbols", err)
		}
		l, closeLog, err := loadFor(cmd.Context(), file)
		if err != nil {
			return outputError("symbols", err)
		}
		defer closeLog()
		return outputResult(CLIResult{Command: "symbols", Results: outlineToCLI(l.ws.Query().DocumentSymbols(file))})
	},
}

var workspaceSymbolsCmd = &cobra.Command{
	Use:   "workspace-symbols <query> [path]",
	Short: "Search the global symbols of a workspace",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveTargetDir(args[1:])
		if err != nil {
			return outputError("workspace-symbols", err)
		}
		logger, closeLog, err := newLogger()
		if err != nil {
			return outputError("workspace-symbols", err)
		}
		defer closeLog()
		l, err := loadWorkspace(cmd.Context(), findRoot(dir), logger)
		if err != nil {
			return outputError("workspace-symbols", err)
		}
		syms := outlineToCLI(l.ws.Query().WorkspaceSymbols(args[0]))
		total := len(syms)
		return outputResult(CLIResult{Command: "workspace-symbols", Results: syms, TotalCount: &total})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <file> <line> <col> <new-name>",
	Short: "Rename the symbol under the cursor",
	Long:  "Computes the edits that rename the symbol under the cursor. With --diff the edited files are shown as a diff; with --write they are saved.",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parsePosition(args)
		if err != nil {
			return outputError("rename", err)
		}
		l, closeLog, err := loadFor(cmd.Context(), pos.file)
		if err != nil {
			return outputError("rename", err)
		}
		defer closeLog()
		q := l.ws.Query()
		res, err := q.Rename(q.Resolve(pos.file, pos.line, pos.col), args[3])
		if errors.Is(err, rulesls.ErrNoReferences) {
			return outputError("rename", errors.New("rename failed: no usages found to rename"))
		}
		if err != nil {
			return outputError("rename", err)
		}

		out, err := renameOutput(l.ws, res, flagDiff)
		if err != nil {
			return outputError("rename", err)
		}
		if flagWrite {
			if err := writeEdits(l.ws, res); err != nil {
				return outputError("rename", err)
			}
		}
		return outputResult(CLIResult{Command: "rename", Results: out})
	},
}

// editedText returns the content of path after applying its edits.
func editedText(ws *rulesls.Workspace, path string, edits []rulesls.TextEdit) (before, after string, err error) {
	fi := ws.File(path)
	if fi == nil {
		return "", "", fmt.Errorf("%s is not loaded", path)
	}
	before = fi.File.Text()
	return before, rulesls.ApplyEdits(before, edits), nil
}

func renameOutput(ws *rulesls.Workspace, res *rulesls.RenameResult, withDiff bool) (CLIRename, error) {
	out := CLIRename{Files: map[string][]CLIEdit{}}
	paths := make([]string, 0, len(res.Edits))
	for p := range res.Edits {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var diff strings.Builder
	for _, p := range paths {
		edits := res.Edits[p]
		for _, e := range edits {
			out.Files[p] = append(out.Files[p], CLIEdit{Line: e.Span.Line, StartCol: e.Span.StartCol, EndCol: e.Span.EndCol, NewText: e.NewText})
		}
		if !withDiff {
			continue
		}
		before, after, err := editedText(ws, p, edits)
		if err != nil {
			return out, err
		}
		diff.WriteString(lineDiff(p, before, after))
	}
	out.Diff = diff.String()
	return out, nil
}

// lineDiff renders a whole-line diff of one file. Unchanged lines are
// omitted.
func lineDiff(path, before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", path, path)
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func writeEdits(ws *rulesls.Workspace, res *rulesls.RenameResult) error {
	for path, edits := range res.Edits {
		_, after, err := editedText(ws, path, edits)
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(after), info.Mode().Perm()); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}
