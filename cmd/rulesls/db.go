package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/rulesls/internal/store"
	"github.com/jward/rulesls/internal/symbols"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Read a database written by export",
	Long:  "Answer questions from the SQLite snapshot written by export without indexing the workspace again. Line and column numbers are 0-based.",
}

var dbSymbolCmd = &cobra.Command{
	Use:   "symbol <fqsn> [path]",
	Short: "Show stored symbols by fully qualified name, with their members and references",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runDBSymbol,
}

var dbRefsCmd = &cobra.Command{
	Use:   "refs <file>",
	Short: "List the stored references that occur in a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDBRefs,
}

func init() {
	dbCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: rulesls.db in the workspace root)")
	dbCmd.AddCommand(dbSymbolCmd)
	dbCmd.AddCommand(dbRefsCmd)
}

// openExported opens the database at dbPath. Unlike export it never creates
// one.
func openExported(dbPath string) (*store.Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("no database at %s: run export first", dbPath)
	}
	return store.NewStore(dbPath)
}

func runDBSymbol(cmd *cobra.Command, args []string) error {
	dir, err := resolveTargetDir(args[1:])
	if err != nil {
		return outputError("db symbol", err)
	}
	st, err := openExported(resolveDBPath(findRoot(dir)))
	if err != nil {
		return outputError("db symbol", err)
	}
	defer st.Close()

	syms, err := lookupStored(st, args[0])
	if err != nil {
		return outputError("db symbol", err)
	}
	total := len(syms)
	return outputResult(CLIResult{Command: "db symbol", Results: syms, TotalCount: &total})
}

func runDBRefs(cmd *cobra.Command, args []string) error {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("db refs", err)
	}
	st, err := openExported(resolveDBPath(findRoot(filepath.Dir(file))))
	if err != nil {
		return outputError("db refs", err)
	}
	defer st.Close()

	refs, err := storedRefsIn(st, file)
	if err != nil {
		return outputError("db refs", err)
	}
	total := len(refs)
	return outputResult(CLIResult{Command: "db refs", Results: refs, TotalCount: &total})
}

// lookupStored returns every stored symbol whose FQSN matches fqsn, ignoring
// case, with its direct members and its references.
func lookupStored(st *store.Store, fqsn string) ([]CLIStoredSymbol, error) {
	paths, err := storedPaths(st)
	if err != nil {
		return nil, err
	}
	rows, err := st.SymbolsByFQSN(symbols.Key(fqsn))
	if err != nil {
		return nil, err
	}
	out := make([]CLIStoredSymbol, 0, len(rows))
	for _, row := range rows {
		sym := storedToCLI(row, paths)
		children, err := st.SymbolChildren(row.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			sym.Children = append(sym.Children, storedToCLI(c, paths))
		}
		refs, err := st.ReferencesTo(row.ID)
		if err != nil {
			return nil, err
		}
		sym.References = make([]CLILocation, 0, len(refs))
		for _, r := range refs {
			sym.References = append(sym.References, referenceToCLI(r, paths[r.FileID]))
		}
		out = append(out, sym)
	}
	return out, nil
}

// storedRefsIn returns the references recorded in path, each with the FQSN
// of the symbol it names.
func storedRefsIn(st *store.Store, path string) ([]CLIStoredReference, error) {
	f, err := st.FileByPath(path)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%s was not exported", path)
	}
	refs, err := st.ReferencesByFile(f.ID)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string)
	out := make([]CLIStoredReference, 0, len(refs))
	for _, r := range refs {
		name, ok := names[r.SymbolID]
		if !ok {
			sym, err := st.SymbolByID(r.SymbolID)
			if err != nil {
				return nil, err
			}
			if sym != nil {
				name = sym.FQSN
			}
			names[r.SymbolID] = name
		}
		out = append(out, CLIStoredReference{Symbol: name, CLILocation: referenceToCLI(r, path)})
	}
	return out, nil
}

func storedPaths(st *store.Store) (map[int64]string, error) {
	files, err := st.Files()
	if err != nil {
		return nil, err
	}
	paths := make(map[int64]string, len(files))
	for _, f := range files {
		paths[f.ID] = f.Path
	}
	return paths, nil
}

// storedToCLI converts a row. Stored lines are 1-based.
func storedToCLI(s *store.Symbol, paths map[int64]string) CLIStoredSymbol {
	return CLIStoredSymbol{
		Name:      s.Name,
		Kind:      s.Kind,
		FQSN:      s.FQSN,
		File:      paths[s.FileID],
		StartLine: s.StartLine - 1,
		EndLine:   s.EndLine - 1,
		TypeName:  s.TypeName,
		Link:      s.LinkFQSN,
	}
}

func referenceToCLI(r *store.Reference, path string) CLILocation {
	return CLILocation{
		File:      path,
		StartLine: r.Line,
		StartCol:  r.StartCol,
		EndLine:   r.Line,
		EndCol:    r.EndCol,
	}
}
