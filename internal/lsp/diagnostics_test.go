package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/rulesls/internal/checker"
	"github.com/jward/rulesls/internal/parser"
	"github.com/jward/rulesls/internal/runtime"
	"github.com/jward/rulesls/internal/source"
)

const ruleText = `# header
alert tcp any any -> any 80 (msg:"one"; content:"GET"; sid:1;)
alert tcp any any -> any 80 (msg:"two"; content:"POST"; sid:22;)
`

func TestEngineDiagnostics_Placement(t *testing.T) {
	t.Parallel()
	f := source.NewText("x.rules", ruleText)
	res := &checker.Result{
		Errors:   []checker.Record{{Message: "bad", Source: checker.SourceSyntaxCheck, Line: 1, Code: 39}},
		Warnings: []checker.Record{{Message: "dup", Source: checker.SourceSyntaxCheck, Line: -1, SID: 22}},
		Info:     []checker.Record{{Message: "fp", Source: checker.SourceEngineAnalysis, Line: -1, Content: `content:"POST"`}},
	}
	diags := engineDiagnostics(f, res)
	require.Len(t, diags, 3)

	assert.Equal(t, protocol.DiagnosticSeverityError, diags[0].Severity)
	assert.EqualValues(t, 1, diags[0].Range.Start.Line)
	assert.EqualValues(t, 39, diags[0].Code)

	assert.Equal(t, protocol.DiagnosticSeverityWarning, diags[1].Severity)
	assert.EqualValues(t, 2, diags[1].Range.Start.Line)
	assert.Nil(t, diags[1].Code)

	assert.Equal(t, protocol.DiagnosticSeverityInformation, diags[2].Severity)
	assert.EqualValues(t, 2, diags[2].Range.Start.Line)
	assert.EqualValues(t, 40, diags[2].Range.Start.Character)
	assert.EqualValues(t, 54, diags[2].Range.End.Character)
}

func TestEngineDiagnostics_Unplaced(t *testing.T) {
	t.Parallel()
	f := source.NewText("x.rules", ruleText)
	diags := engineDiagnostics(f, &checker.Result{
		Warnings: []checker.Record{
			{Message: "no sid", Line: -1, SID: 99},
			{Message: "nothing", Line: -1},
		},
	})
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Zero(t, d.Range.Start.Line)
	}
	assert.Nil(t, engineDiagnostics(f, nil))
}

func TestParserAndLintDiagnostics(t *testing.T) {
	t.Parallel()
	f := source.NewText("x.rules", "type T\n  var x : int\n")
	diags := parserDiagnostics(f, []parser.Diagnostic{
		{Line: 1, Message: "type \"T\" is not closed", Severity: parser.SeverityError},
		{Line: 2, Message: "odd", Severity: parser.SeverityWarning},
	})
	require.Len(t, diags, 2)
	assert.Equal(t, ParserSource, diags[0].Source)
	assert.Equal(t, protocol.Range{Start: position(0, 0), End: position(0, 6)}, diags[0].Range)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, diags[1].Severity)
	assert.EqualValues(t, 13, diags[1].Range.End.Character)

	lint := lintDiagnostics(f, []runtime.Finding{{Line: 1, Message: "untyped", Source: runtime.FindingSource, Script: "check.risor"}})
	require.Len(t, lint, 1)
	assert.Equal(t, runtime.FindingSource, lint[0].Source)
	assert.Equal(t, "check.risor", lint[0].Code)
	assert.EqualValues(t, 1, lint[0].Range.Start.Line)
}
