package lsp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/jward/rulesls"
	"github.com/jward/rulesls/internal/config"
	"github.com/jward/rulesls/internal/source"
)

// contentChange is one entry of didChange. The range is absent when the
// change replaces the whole document.
type contentChange struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

type didChangeParams struct {
	TextDocument protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                       `json:"contentChanges"`
}

func (s *Server) didOpen(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.DidOpenTextDocumentParams](req)
	if err != nil {
		return nil, err
	}
	path, ok := pathOf(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	s.open[path] = true
	if _, err := s.ws.Update(path, rulesls.UpdateOptions{ReadFromDisk: true, AllowEmpty: true}); err != nil {
		s.showMessage(ctx, conn, protocol.MessageTypeWarning, fmt.Sprintf("Open request failed for file %q: %v", path, err))
		return nil, nil
	}
	s.publish(ctx, conn, path, true)
	return nil, nil
}

func (s *Server) didSave(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.DidSaveTextDocumentParams](req)
	if err != nil {
		return nil, err
	}
	path, ok := pathOf(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	if _, err := s.ws.Update(path, rulesls.UpdateOptions{ReadFromDisk: true}); err != nil {
		s.showMessage(ctx, conn, protocol.MessageTypeWarning, fmt.Sprintf("Save request failed for file %q: %v", path, err))
		return nil, nil
	}
	s.publish(ctx, conn, path, true)
	return nil, nil
}

func (s *Server) didClose(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.DidCloseTextDocumentParams](req)
	if err != nil {
		return nil, err
	}
	path, ok := pathOf(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	delete(s.open, path)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && s.ws.Remove(path) {
		s.clearDiagnostics(ctx, conn, path)
	}
	return nil, nil
}

func (s *Server) didChange(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[didChangeParams](req)
	if err != nil {
		return nil, err
	}
	path, ok := pathOf(params.TextDocument.URI)
	if !ok || len(params.ContentChanges) == 0 {
		return nil, nil
	}
	if s.ws.File(path) == nil {
		s.showMessage(ctx, conn, protocol.MessageTypeWarning, fmt.Sprintf("Change request failed for unknown file %q", path))
		return nil, nil
	}

	var changes []source.Change
	if s.settings.SyncType == config.SyncFull {
		changes = []source.Change{{Text: params.ContentChanges[0].Text}}
	} else {
		for _, c := range params.ContentChanges {
			changes = append(changes, toChange(c))
		}
	}
	reparsed, err := s.ws.Update(path, rulesls.UpdateOptions{Changes: changes})
	if err != nil {
		return nil, err
	}
	if reparsed {
		s.publish(ctx, conn, path, false)
	}
	return nil, nil
}

func (s *Server) documentSymbol(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.DocumentSymbolParams](req)
	if err != nil {
		return nil, err
	}
	path, ok := pathOf(params.TextDocument.URI)
	if !ok || s.ws.File(path) == nil {
		return nil, nil
	}
	return toSymbolInformation(s.ws, s.ws.Query().DocumentSymbols(path)), nil
}

func (s *Server) workspaceSymbol(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.WorkspaceSymbolParams](req)
	if err != nil {
		return nil, err
	}
	return toSymbolInformation(s.ws, s.ws.Query().WorkspaceSymbols(params.Query)), nil
}

// cursor decodes a text document position into a workspace path and byte
// position. ok is false for files the workspace does not hold.
func (s *Server) cursor(tdp protocol.TextDocumentPositionParams) (path string, line, col int, ok bool) {
	path, ok = pathOf(tdp.TextDocument.URI)
	if !ok || s.ws.File(path) == nil {
		return "", 0, 0, false
	}
	line, col = byteCol(s.ws, path, tdp.Position)
	return path, line, col, true
}

func (s *Server) completion(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.CompletionParams](req)
	if err != nil {
		return nil, err
	}
	path, line, col, ok := s.cursor(params.TextDocumentPositionParams)
	if !ok {
		return nil, nil
	}
	items := s.ws.Query().Complete(path, line, col)
	if len(items) == 0 {
		return nil, nil
	}
	return toCompletionList(items), nil
}

func (s *Server) signatureHelp(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.SignatureHelpParams](req)
	if err != nil {
		return nil, err
	}
	path, line, col, ok := s.cursor(params.TextDocumentPositionParams)
	if !ok {
		return nil, nil
	}
	sig := s.ws.Query().SignatureAt(path, line, col)
	if sig == nil {
		return nil, nil
	}
	return toSignatureHelp(sig), nil
}

func (s *Server) definition(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.DefinitionParams](req)
	if err != nil {
		return nil, err
	}
	path, line, col, ok := s.cursor(params.TextDocumentPositionParams)
	if !ok {
		return nil, nil
	}
	loc := s.ws.Query().DefinitionAt(path, line, col)
	if loc == nil {
		return nil, nil
	}
	return toLocation(s.ws, loc), nil
}

func (s *Server) implementation(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.ImplementationParams](req)
	if err != nil {
		return nil, err
	}
	path, line, col, ok := s.cursor(params.TextDocumentPositionParams)
	if !ok {
		return nil, nil
	}
	loc := s.ws.Query().ImplementationAt(path, line, col)
	if loc == nil {
		return nil, nil
	}
	return toLocation(s.ws, loc), nil
}

func (s *Server) references(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.ReferenceParams](req)
	if err != nil {
		return nil, err
	}
	path, line, col, ok := s.cursor(params.TextDocumentPositionParams)
	if !ok {
		return nil, nil
	}
	q := s.ws.Query()
	sym := q.Resolve(path, line, col)
	if sym == nil {
		return nil, nil
	}
	locs := referenceLocations(s.ws, q.ReferencesTo(sym))
	if len(locs) == 0 {
		return nil, nil
	}
	return locs, nil
}

func (s *Server) hover(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.HoverParams](req)
	if err != nil {
		return nil, err
	}
	path, line, col, ok := s.cursor(params.TextDocumentPositionParams)
	if !ok {
		return nil, nil
	}
	h := s.ws.Query().HoverAt(path, line, col)
	if h == nil || len(h.Contents) == 0 {
		return nil, nil
	}
	return toHover(h), nil
}

func (s *Server) rename(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.RenameParams](req)
	if err != nil {
		return nil, err
	}
	path, line, col, ok := s.cursor(params.TextDocumentPositionParams)
	if !ok {
		return nil, nil
	}
	q := s.ws.Query()
	res, err := q.Rename(q.Resolve(path, line, col), params.NewName)
	switch {
	case errors.Is(err, rulesls.ErrNoReferences):
		s.showMessage(ctx, conn, protocol.MessageTypeWarning, "Rename failed: No usages found to rename")
		return nil, nil
	case errors.Is(err, rulesls.ErrInvalidName):
		s.showMessage(ctx, conn, protocol.MessageTypeWarning, fmt.Sprintf("Rename failed: %v", err))
		return nil, nil
	case err != nil:
		return nil, err
	}
	return toWorkspaceEdit(s.ws, res.Edits), nil
}

func (s *Server) codeAction(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.CodeActionParams](req)
	if err != nil {
		return nil, err
	}
	path, ok := pathOf(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	actions := s.ws.Query().CodeActions(path, int(params.Range.Start.Line), int(params.Range.End.Line))
	if len(actions) == 0 {
		return nil, nil
	}
	out := make([]protocol.CodeAction, 0, len(actions))
	for _, a := range actions {
		out = append(out, protocol.CodeAction{
			Title: a.Title,
			Kind:  protocol.QuickFix,
			Edit:  toWorkspaceEdit(s.ws, a.Edits),
		})
	}
	return out, nil
}

// publish sends the diagnostics of path. Engine checks run only when
// withEngine is set, since they spawn a process per call.
func (s *Server) publish(ctx context.Context, conn *jsonrpc2.Conn, path string, withEngine bool) {
	fi := s.ws.File(path)
	if fi == nil || conn == nil {
		return
	}
	diags := parserDiagnostics(fi.File, fi.Diagnostics)
	if withEngine && s.engine != nil {
		res, err := s.engine.Check(ctx, fi.File.Text())
		if err != nil {
			s.logger.Warn("engine check failed", "path", path, "error", err)
		} else {
			diags = append(diags, engineDiagnostics(fi.File, res)...)
		}
	}
	if s.lint != nil {
		found, err := s.lint.Lint(ctx, s.project.LintScripts, s.ws.LintTarget(path))
		if err != nil {
			s.logger.Warn("lint scripts failed", "path", path, "error", err)
		}
		diags = append(diags, lintDiagnostics(fi.File, found)...)
	}
	s.sendDiagnostics(ctx, conn, path, diags)
}

func (s *Server) clearDiagnostics(ctx context.Context, conn *jsonrpc2.Conn, path string) {
	s.sendDiagnostics(ctx, conn, path, nil)
}

func (s *Server) sendDiagnostics(ctx context.Context, conn *jsonrpc2.Conn, path string, diags []protocol.Diagnostic) {
	if conn == nil {
		return
	}
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	err := conn.Notify(ctx, protocol.MethodTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri.File(path),
		Diagnostics: diags,
	})
	if err != nil {
		s.logger.Warn("publish diagnostics failed", "path", path, "error", err)
	}
}
