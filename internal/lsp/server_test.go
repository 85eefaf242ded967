package lsp

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/jward/rulesls/internal/config"
)

const typeFile = `type T
  var foo : int
end type
`

const useFile = `subroutine main(x)
  var x : T
  n = x%foo
end subroutine
`

// testClient records the notifications the server sends.
type testClient struct {
	conn  *jsonrpc2.Conn
	notes chan *jsonrpc2.Request
}

func (c *testClient) Handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		c.notes <- req
	}
}

// next waits for the next notification of the given method, dropping
// others.
func (c *testClient) next(t *testing.T, method string) *jsonrpc2.Request {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case req := <-c.notes:
			if req.Method == method {
				return req
			}
		case <-timeout:
			t.Fatalf("no %s notification", method)
			return nil
		}
	}
}

func (c *testClient) call(t *testing.T, method string, params, result any) {
	t.Helper()
	require.NoError(t, c.conn.Call(context.Background(), method, params, result))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func setup(t *testing.T, settings config.Settings) (*Server, *testClient) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	s := NewServer(Options{Settings: settings, Version: "test"})

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		s.Serve(ctx, serverConn)
	}()

	c := &testClient{notes: make(chan *jsonrpc2.Request, 64)}
	c.conn = jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(clientConn, jsonrpc2.VSCodeObjectCodec{}), c)
	t.Cleanup(func() {
		c.conn.Close()
		cancel()
		<-served
	})
	return s, c
}

func initialize(t *testing.T, c *testClient, root string) protocol.InitializeResult {
	t.Helper()
	var result protocol.InitializeResult
	c.call(t, protocol.MethodInitialize, protocol.InitializeParams{RootURI: uri.File(root)}, &result)
	require.NoError(t, c.conn.Notify(context.Background(), protocol.MethodInitialized, struct{}{}))
	return result
}

func position(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func TestInitialize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.rules", typeFile)
	_, c := setup(t, config.Settings{SyncType: config.SyncIncremental})

	result := initialize(t, c, dir)
	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, "rulesls", result.ServerInfo.Name)
	assert.Equal(t, "test", result.ServerInfo.Version)
	assert.EqualValues(t, 2, result.Capabilities.TextDocumentSync)
	require.NotNil(t, result.Capabilities.CompletionProvider)
	assert.Equal(t, []string{"%"}, result.Capabilities.CompletionProvider.TriggerCharacters)
	require.NotNil(t, result.Capabilities.SignatureHelpProvider)
	assert.Equal(t, []string{"(", ","}, result.Capabilities.SignatureHelpProvider.TriggerCharacters)
	assert.Equal(t, true, result.Capabilities.DefinitionProvider)
	assert.Equal(t, true, result.Capabilities.RenameProvider)
	assert.Equal(t, true, result.Capabilities.CodeActionProvider)
}

func TestInitialize_FlushesWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".rulesls", `{"source_dirs": ["missing"]}`)
	_, c := setup(t, config.Settings{NotifyInit: true})
	initialize(t, c, dir)

	var msg protocol.ShowMessageParams
	note := c.next(t, protocol.MethodWindowShowMessage)
	require.NoError(t, json.Unmarshal(*note.Params, &msg))
	assert.Equal(t, protocol.MessageTypeWarning, msg.Type)
	assert.Contains(t, msg.Message, "missing")
	assert.Contains(t, msg.Message, "does not exist")

	note = c.next(t, protocol.MethodWindowShowMessage)
	require.NoError(t, json.Unmarshal(*note.Params, &msg))
	assert.Equal(t, protocol.MessageTypeInfo, msg.Type)
	assert.Equal(t, "rulesls initialization complete", msg.Message)
}

func TestDefinitionAndReferences(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.rules", typeFile)
	b := writeFile(t, dir, "b.rules", useFile)
	_, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	at := protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(b)},
		Position:     position(2, 9),
	}
	var loc protocol.Location
	c.call(t, protocol.MethodTextDocumentDefinition, protocol.DefinitionParams{TextDocumentPositionParams: at}, &loc)
	assert.Equal(t, uri.File(a), loc.URI)
	assert.Equal(t, protocol.Range{Start: position(1, 6), End: position(1, 9)}, loc.Range)

	var refs []protocol.Location
	c.call(t, protocol.MethodTextDocumentReferences, protocol.ReferenceParams{TextDocumentPositionParams: at}, &refs)
	require.Len(t, refs, 2)
	assert.Equal(t, uri.File(a), refs[0].URI)
	assert.Equal(t, uri.File(b), refs[1].URI)
	assert.Equal(t, protocol.Range{Start: position(2, 8), End: position(2, 11)}, refs[1].Range)
}

func TestReferences_UnresolvedIsNull(t *testing.T) {
	dir := t.TempDir()
	b := writeFile(t, dir, "b.rules", useFile)
	_, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	var refs []protocol.Location
	c.call(t, protocol.MethodTextDocumentReferences, protocol.ReferenceParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(b)},
			Position:     position(2, 9),
		},
	}, &refs)
	assert.Nil(t, refs, "T is declared in no file")
}

func TestWorkspaceSymbol(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.rules", typeFile)
	writeFile(t, dir, "b.rules", useFile)
	_, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	var syms []protocol.SymbolInformation
	c.call(t, protocol.MethodWorkspaceSymbol, protocol.WorkspaceSymbolParams{Query: "t"}, &syms)
	require.NotEmpty(t, syms)
	var found bool
	for _, s := range syms {
		if s.Name == "T" {
			found = true
			assert.Equal(t, protocol.SymbolKindClass, s.Kind)
			assert.Equal(t, uri.File(a), s.Location.URI)
		}
	}
	assert.True(t, found)
}

func TestDidOpen_PublishesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.rules", typeFile)
	_, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	bad := writeFile(t, dir, "bad.rules", "end\n")
	require.NoError(t, c.conn.Notify(context.Background(), protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri.File(bad), Text: "end\n"},
	}))

	note := c.next(t, protocol.MethodTextDocumentPublishDiagnostics)
	var params protocol.PublishDiagnosticsParams
	require.NoError(t, json.Unmarshal(*note.Params, &params))
	assert.Equal(t, uri.File(bad), params.URI)
	require.Len(t, params.Diagnostics, 1)
	assert.Equal(t, ParserSource, params.Diagnostics[0].Source)
	assert.Equal(t, protocol.DiagnosticSeverityError, params.Diagnostics[0].Severity)
	assert.Equal(t, "unexpected end statement", params.Diagnostics[0].Message)
	assert.Equal(t, protocol.Range{Start: position(0, 0), End: position(0, 3)}, params.Diagnostics[0].Range)
}

func TestDidChange_FullSync(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.rules", typeFile)
	_, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	require.NoError(t, c.conn.Notify(context.Background(), protocol.MethodTextDocumentDidChange, map[string]any{
		"textDocument":   map[string]any{"uri": uri.File(a), "version": 2},
		"contentChanges": []map[string]any{{"text": "type Renamed\n  var foo : int\nend type\n"}},
	}))
	c.next(t, protocol.MethodTextDocumentPublishDiagnostics)

	var syms []protocol.SymbolInformation
	c.call(t, protocol.MethodWorkspaceSymbol, protocol.WorkspaceSymbolParams{Query: "Renamed"}, &syms)
	require.Len(t, syms, 1)
	assert.Equal(t, "Renamed", syms[0].Name)
}

func TestDidChange_Incremental(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.rules", typeFile)
	s, c := setup(t, config.Settings{SyncType: config.SyncIncremental})
	initialize(t, c, dir)

	// Rename foo to fob in place.
	require.NoError(t, c.conn.Notify(context.Background(), protocol.MethodTextDocumentDidChange, map[string]any{
		"textDocument": map[string]any{"uri": uri.File(a), "version": 2},
		"contentChanges": []map[string]any{{
			"range": protocol.Range{Start: position(1, 8), End: position(1, 9)},
			"text":  "b",
		}},
	}))
	c.next(t, protocol.MethodTextDocumentPublishDiagnostics)

	var text string
	require.True(t, s.submit(func() { text = s.ws.File(a).File.Text() }))
	assert.Equal(t, "type T\n  var fob : int\nend type\n", text)
}

func TestDidChange_UnknownFile(t *testing.T) {
	dir := t.TempDir()
	_, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	missing := filepath.Join(dir, "nope.rules")
	require.NoError(t, c.conn.Notify(context.Background(), protocol.MethodTextDocumentDidChange, map[string]any{
		"textDocument":   map[string]any{"uri": uri.File(missing), "version": 1},
		"contentChanges": []map[string]any{{"text": "x"}},
	}))
	note := c.next(t, protocol.MethodWindowShowMessage)
	var msg protocol.ShowMessageParams
	require.NoError(t, json.Unmarshal(*note.Params, &msg))
	assert.Equal(t, `Change request failed for unknown file "`+missing+`"`, msg.Message)
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.rules", typeFile)
	b := writeFile(t, dir, "b.rules", useFile)
	_, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	var edit protocol.WorkspaceEdit
	c.call(t, protocol.MethodTextDocumentRename, protocol.RenameParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(b)},
			Position:     position(2, 9),
		},
		NewName: "bar",
	}, &edit)
	require.Len(t, edit.Changes, 2)
	require.Len(t, edit.Changes[uri.File(a)], 1)
	assert.Equal(t, "bar", edit.Changes[uri.File(a)][0].NewText)
	assert.Equal(t, protocol.Range{Start: position(2, 8), End: position(2, 11)}, edit.Changes[uri.File(b)][0].Range)
}

func TestCodeAction_StubsUnboundMethod(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.rules", "type U\n  method fire\nend type\n")
	_, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	var actions []protocol.CodeAction
	c.call(t, protocol.MethodTextDocumentCodeAction, protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(a)},
		Range:        protocol.Range{Start: position(1, 0), End: position(1, 0)},
	}, &actions)
	require.Len(t, actions, 1)
	assert.Equal(t, "Implement missing bindings of U", actions[0].Title)
	assert.Equal(t, protocol.QuickFix, actions[0].Kind)
	require.NotNil(t, actions[0].Edit)
	assert.Equal(t, []protocol.TextEdit{{
		Range:   protocol.Range{Start: position(3, 0), End: position(3, 0)},
		NewText: "\nsubroutine fire(self)\nend subroutine\n",
	}}, actions[0].Edit.Changes[uri.File(a)])

	var none any = "unset"
	c.call(t, protocol.MethodTextDocumentCodeAction, protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(a)},
		Range:        protocol.Range{Start: position(3, 0), End: position(3, 0)},
	}, &none)
	assert.Nil(t, none)
}

func TestApplyDiskChanges_SkipsExcludedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".rulesls", `{"excl_paths": ["old"], "excl_suffixes": [".bak.rules"]}`)
	writeFile(t, dir, "a.rules", typeFile)
	s, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	added := writeFile(t, dir, "b.rules", useFile)
	oldDir := writeFile(t, dir, "old/c.rules", useFile)
	backup := writeFile(t, dir, "d.bak.rules", useFile)

	var loaded []string
	require.True(t, s.submit(func() {
		s.applyDiskChanges(map[string]bool{added: false, oldDir: false, backup: false})
		loaded = s.ws.Paths()
	}))
	assert.Equal(t, []string{filepath.Join(dir, "a.rules"), added}, loaded)
}

func TestRename_NoUsages(t *testing.T) {
	dir := t.TempDir()
	b := writeFile(t, dir, "b.rules", useFile)
	_, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	var result any
	c.call(t, protocol.MethodTextDocumentRename, protocol.RenameParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(b)},
			Position:     position(2, 9),
		},
		NewName: "bar",
	}, &result)
	assert.Nil(t, result)

	note := c.next(t, protocol.MethodWindowShowMessage)
	var msg protocol.ShowMessageParams
	require.NoError(t, json.Unmarshal(*note.Params, &msg))
	assert.Equal(t, "Rename failed: No usages found to rename", msg.Message)
}

func TestUnknownMethod(t *testing.T) {
	_, c := setup(t, config.DefaultSettings())
	err := c.conn.Call(context.Background(), "textDocument/frobnicate", struct{}{}, nil)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.EqualValues(t, jsonrpc2.CodeMethodNotFound, rpcErr.Code)
	assert.Equal(t, "method textDocument/frobnicate not found", rpcErr.Message)
}

func TestShutdownReturnsNull(t *testing.T) {
	_, c := setup(t, config.DefaultSettings())
	result := any("unset")
	c.call(t, protocol.MethodShutdown, nil, &result)
	assert.Nil(t, result)
}

func TestHandlerPanicCarriesTraceback(t *testing.T) {
	s, c := setup(t, config.DefaultSettings())
	s.handlers["test/panic"] = func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
		panic("boom")
	}
	err := c.conn.Call(context.Background(), "test/panic", struct{}{}, nil)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.EqualValues(t, jsonrpc2.CodeInternalError, rpcErr.Code)
	assert.Equal(t, "panic: boom", rpcErr.Message)
	require.NotNil(t, rpcErr.Data)
	var data map[string]string
	require.NoError(t, json.Unmarshal(*rpcErr.Data, &data))
	assert.Contains(t, data["traceback"], "goroutine")
}

func TestExit_ClearsWorkspace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.rules", typeFile)
	s, c := setup(t, config.DefaultSettings())
	initialize(t, c, dir)

	require.NoError(t, c.conn.Notify(context.Background(), protocol.MethodExit, nil))
	select {
	case <-c.conn.DisconnectNotify():
	case <-time.After(5 * time.Second):
		t.Fatal("connection not closed on exit")
	}
	assert.False(t, s.submit(func() {}), "dispatcher stopped")
	assert.Empty(t, s.ws.Paths())
}

func TestServe_ClosesWatcherOnDisconnect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.rules", typeFile)
	serverConn, clientConn := net.Pipe()
	s := NewServer(Options{Settings: config.Settings{Watch: true}, Version: "test"})

	served := make(chan struct{})
	go func() {
		defer close(served)
		s.Serve(context.Background(), serverConn)
	}()
	c := &testClient{notes: make(chan *jsonrpc2.Request, 64)}
	c.conn = jsonrpc2.NewConn(context.Background(), jsonrpc2.NewBufferedStream(clientConn, jsonrpc2.VSCodeObjectCodec{}), c)
	initialize(t, c, dir)
	require.NoError(t, c.conn.Close())

	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after disconnect")
	}
	require.NotNil(t, s.watcher)
	select {
	case <-s.watcher.done:
	default:
		t.Fatal("watcher still running")
	}
}
