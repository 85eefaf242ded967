package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jward/rulesls/internal/checker"
	"github.com/jward/rulesls/internal/config"
	"github.com/jward/rulesls/internal/parser"
	"github.com/jward/rulesls/internal/runtime"
)

var flagCheckEngine string

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Check every rule file of a workspace",
	Long:  "Reports parse problems, engine errors and warnings, and lint script findings for every rule file. Exits non-zero when any error is found.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&flagCheckEngine, "engine", config.DefaultSettings().EngineBinary, "engine binary; empty skips engine checks")
}

// Severity names used in check output.
const (
	severityError   = "error"
	severityWarning = "warning"
	severityInfo    = "info"
)

func runCheck(cmd *cobra.Command, args []string) error {
	dir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("check", err)
	}
	logger, closeLog, err := newLogger()
	if err != nil {
		return outputError("check", err)
	}
	defer closeLog()

	l, err := loadWorkspace(cmd.Context(), findRoot(dir), logger)
	if err != nil {
		return outputError("check", err)
	}
	for _, w := range l.warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	var engine *checker.Engine
	if flagCheckEngine != "" {
		cfg, err := config.ReadEngineConfig(os.DirFS(l.root), l.project)
		if err != nil {
			return outputError("check", err)
		}
		engine = &checker.Engine{Binary: flagCheckEngine, Config: cfg}
	}
	diags, err := checkWorkspace(cmd.Context(), l, engine, logger)
	if err != nil {
		return outputError("check", err)
	}
	if err := outputResult(CLIResult{Command: "check", Results: diags}); err != nil {
		return err
	}
	n := 0
	for _, d := range diags {
		if d.Severity == severityError {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%d errors found", n)
	}
	return nil
}

// checkWorkspace collects the diagnostics of every file. A missing engine
// binary is reported once and the engine is skipped from then on.
func checkWorkspace(ctx context.Context, l *loaded, engine *checker.Engine, logger *slog.Logger) ([]CLIDiagnostic, error) {
	var lint *runtime.Runtime
	if l.project != nil && len(l.project.LintScripts) > 0 {
		lint = runtime.NewRuntime(l.root, runtime.WithLogger(logger))
	}

	diags := []CLIDiagnostic{}
	for _, path := range l.ws.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fi := l.ws.File(path)
		for _, d := range fi.Diagnostics {
			sev := severityWarning
			if d.Severity == parser.SeverityError {
				sev = severityError
			}
			diags = append(diags, CLIDiagnostic{File: path, Line: max(d.Line-1, 0), Severity: sev, Source: "rulesls", Message: d.Message})
		}

		if engine != nil {
			res, err := engine.Check(ctx, fi.File.Text())
			switch {
			case errors.Is(err, checker.ErrEngineNotFound):
				fmt.Fprintf(os.Stderr, "warning: %v; skipping engine checks\n", err)
				engine = nil
			case err != nil:
				return nil, fmt.Errorf("checking %s: %w", path, err)
			default:
				diags = append(diags, engineRecords(path, fi.File.Lines, res)...)
			}
		}

		if lint != nil {
			found, err := lint.Lint(ctx, l.project.LintScripts, l.ws.LintTarget(path))
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: lint %s: %v\n", path, err)
			}
			for _, f := range found {
				diags = append(diags, CLIDiagnostic{File: path, Line: f.Line, Severity: severityWarning, Source: f.Source, Message: f.Message})
			}
		}
	}
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].File != diags[j].File {
			return diags[i].File < diags[j].File
		}
		return diags[i].Line < diags[j].Line
	})
	return diags, nil
}

func engineRecords(path string, lines []string, res *checker.Result) []CLIDiagnostic {
	var out []CLIDiagnostic
	add := func(recs []checker.Record, sev string) {
		for _, r := range recs {
			line, _, _ := checker.Locate(lines, r)
			out = append(out, CLIDiagnostic{File: path, Line: line, Severity: sev, Source: r.Source, Message: r.Message, Code: r.Code})
		}
	}
	add(res.Errors, severityError)
	add(res.Warnings, severityWarning)
	add(res.Info, severityInfo)
	return out
}
