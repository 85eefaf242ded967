package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/rulesls"
	"github.com/jward/rulesls/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a workspace and summarize it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	root, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}
	logger, closeLog, err := newLogger()
	if err != nil {
		return outputError("index", err)
	}
	defer closeLog()

	l, err := loadWorkspace(cmd.Context(), findRoot(root), logger)
	if err != nil {
		return outputError("index", err)
	}
	summary := CLIIndexSummary{
		Root:     l.root,
		Dirs:     len(l.layout.Dirs),
		Warnings: l.warnings,
	}
	for _, path := range l.ws.Paths() {
		fi := l.ws.File(path)
		summary.Files++
		summary.Symbols += fi.Tree.Len()
		summary.Diagnostics += len(fi.Diagnostics)
	}
	if summary.Warnings == nil {
		summary.Warnings = []string{}
	}
	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", l.root, time.Since(start).Round(time.Millisecond))
	return outputResult(CLIResult{Command: "index", Results: summary})
}

var flagDB string

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Index a workspace and write a SQLite snapshot",
	Long:  "Indexes the workspace and writes its files, symbols and references to a SQLite database. Files whose content is unchanged since the last export are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagDB, "db", "", "database path (default: rulesls.db in the workspace root)")
}

// resolveDBPath returns the database path from --db or the default.
func resolveDBPath(root string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(root, flagDB)
	}
	return filepath.Join(root, "rulesls.db")
}

func runExport(cmd *cobra.Command, args []string) error {
	start := time.Now()
	dir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("export", err)
	}
	logger, closeLog, err := newLogger()
	if err != nil {
		return outputError("export", err)
	}
	defer closeLog()

	root := findRoot(dir)
	l, err := loadWorkspace(cmd.Context(), root, logger)
	if err != nil {
		return outputError("export", err)
	}
	dbPath := resolveDBPath(root)
	stats, err := exportTo(cmd.Context(), l, dbPath)
	if err != nil {
		return outputError("export", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %s in %s\n", root, time.Since(start).Round(time.Millisecond))
	return outputResult(CLIResult{Command: "export", Results: CLIExport{
		Database:   dbPath,
		Files:      stats.Files,
		Unchanged:  stats.Unchanged,
		Symbols:    stats.Symbols,
		References: stats.References,
	}})
}

func exportTo(ctx context.Context, l *loaded, dbPath string) (*rulesls.ExportStats, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		return nil, err
	}
	return l.ws.Export(ctx, st)
}
