package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"

	"github.com/jward/rulesls"
	"github.com/jward/rulesls/internal/config"
)

var (
	flagFormat   string
	flagDebug    bool
	flagLogFile  string
	flagNThreads int
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "rulesls",
	Short:         "Language server and indexer for rule files",
	Long:          "rulesls indexes a workspace of rule files, answers editor queries over the Language Server Protocol and checks rules with the detection engine.",
	Version:       versioninfo.Short(),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		if flagNThreads < 1 {
			return fmt.Errorf("invalid --nthreads %d: must be at least 1", flagNThreads)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "log at debug level")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().IntVar(&flagNThreads, "nthreads", config.DefaultSettings().NThreads, "parser worker count")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(dbCmd)
}

// newLogger builds the process logger from --debug and --log-file. The
// returned func closes the log file.
func newLogger() (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if flagLogFile != "" {
		f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn, nil
}

// resolveTargetDir returns the absolute path of the directory to work on.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRoot walks up from startDir looking for a settings file or a .git
// directory. Returns startDir if neither is found.
func findRoot(startDir string) string {
	dir := startDir
	for {
		if hasProjectFile(dir) {
			return dir
		}
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

func hasProjectFile(dir string) bool {
	for _, name := range []string{config.FileName, config.FileName + ".yaml", config.FileName + ".toml"} {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// loaded is an indexed workspace root.
type loaded struct {
	root     string
	ws       *rulesls.Workspace
	project  *config.Project
	layout   *config.Layout
	warnings []string
}

// loadWorkspace reads the settings of root, discovers its rule files and
// indexes them.
func loadWorkspace(ctx context.Context, root string, logger *slog.Logger) (*loaded, error) {
	fsys := os.DirFS(root)
	project, name, err := config.LoadProject(fsys)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	layout, warnings := config.Discover(fsys, root, project)
	ws := rulesls.New(rulesls.WithLogger(logger))
	initWarnings, err := ws.Init(ctx, layout.Files, flagNThreads)
	if err != nil {
		return nil, fmt.Errorf("indexing: %w", err)
	}
	return &loaded{
		root:     root,
		ws:       ws,
		project:  project,
		layout:   layout,
		warnings: append(warnings, initWarnings...),
	}, nil
}
