// Package checker drives the external rule engine to validate rule text.
// It runs the engine in test mode and in engine-analysis mode inside a
// scratch directory and turns its JSON log lines and analysis files into
// Records.
package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrEngineNotFound is returned when the engine binary cannot be executed.
var ErrEngineNotFound = errors.New("rule engine binary not found")

// Record sources.
const (
	SourceSyntaxCheck    = "Suricata Syntax Check"
	SourceEngineAnalysis = "Suricata Engine Analysis"
)

// Record is one finding reported by the engine. Line is 0-based and -1 when
// the engine did not name one; SID is 0 when absent.
type Record struct {
	Message   string `json:"message"`
	Source    string `json:"source"`
	SID       int    `json:"sid,omitempty"`
	Line      int    `json:"line"`
	Content   string `json:"content,omitempty"`
	Code      int    `json:"code,omitempty"`
	StartChar int    `json:"start_char,omitempty"`
	EndChar   int    `json:"end_char,omitempty"`
}

// Result groups the records of one check by severity.
type Result struct {
	Errors   []Record `json:"errors"`
	Warnings []Record `json:"warnings"`
	Info     []Record `json:"info"`
}

// Output is what one engine invocation produced.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes the engine. Tests inject canned output through it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Output, error)
}

// ExecRunner runs commands with os/exec. A non-zero exit status is reported
// in Output.ExitCode, not as an error.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (*Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out := &Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%s: %w", name, ErrEngineNotFound)
	default:
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return out, nil
}

// Engine checks rule text with the engine binary.
type Engine struct {
	// Binary is the engine executable; "suricata" when empty.
	Binary string
	// Config replaces the built-in engine YAML when set.
	Config string
	// Single skips the per-file rule errors (codes 39 and 42), for callers
	// checking one rule at a time.
	Single bool
	Runner Runner
}

func (e *Engine) binary() string {
	if e.Binary == "" {
		return "suricata"
	}
	return e.Binary
}

func (e *Engine) runner() Runner {
	if e.Runner == nil {
		return ExecRunner{}
	}
	return e.Runner
}

// Check validates content and returns the engine's findings.
func (e *Engine) Check(ctx context.Context, content string) (*Result, error) {
	dir, err := os.MkdirTemp("", "rulesls-check-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ruleFile := filepath.Join(dir, "file.rules")
	if err := os.WriteFile(ruleFile, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("write rules: %w", err)
	}
	cfgFile, err := writeConfig(dir, e.Config)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	out, err := e.runner().Run(ctx, e.binary(), "-T", "-l", dir, "-S", ruleFile, "-c", cfgFile)
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		errs, warns := ParseErrors(string(out.Stderr), e.Single)
		res.Errors = append(res.Errors, errs...)
		res.Warnings = append(res.Warnings, warns...)
	}
	res.Warnings = append(res.Warnings, parseStdout(out.Stdout)...)

	if _, err := e.runner().Run(ctx, e.binary(), "--engine-analysis", "-l", dir, "-S", ruleFile, "-c", cfgFile); err != nil {
		return nil, err
	}
	sigs, err := ParseAnalysis(dir)
	if err != nil {
		return nil, err
	}
	for _, sig := range sigs {
		w, info := sig.records()
		res.Warnings = append(res.Warnings, w...)
		res.Info = append(res.Info, info...)
	}
	return res, nil
}

// engineLine is one JSON log line of the engine.
type engineLine struct {
	Engine *struct {
		ErrorCode int    `json:"error_code"`
		Message   string `json:"message"`
	} `json:"engine"`
}

// parseStdout extracts the warnings the engine logs on success: duplicate
// signatures (code 176) and invalid signatures (code 276).
func parseStdout(stdout []byte) []Record {
	var out []Record
	for _, line := range strings.Split(string(stdout), "\n") {
		var l engineLine
		if json.Unmarshal([]byte(line), &l) != nil || l.Engine == nil {
			continue
		}
		msg := l.Engine.Message
		switch l.Engine.ErrorCode {
		case 176:
			warning, sig, ok := strings.Cut(msg, `"`)
			if !ok {
				continue
			}
			out = append(out, Record{
				Message: strings.TrimRight(warning, " \t"),
				Source:  SourceSyntaxCheck,
				Line:    -1,
				Content: strings.TrimRight(sig, `"`),
				Code:    176,
			})
		case 276:
			rule, warning, ok := strings.Cut(msg, ": ")
			if !ok {
				continue
			}
			fields := strings.Fields(rule)
			if len(fields) < 2 {
				continue
			}
			sid, err := strconv.Atoi(fields[1])
			if err != nil {
				continue
			}
			out = append(out, Record{
				Message: strings.TrimRight(warning, " \t\n"),
				Source:  SourceSyntaxCheck,
				SID:     sid,
				Line:    -1,
				Code:    276,
			})
		}
	}
	return out
}
