// Package lsp serves a rulesls Workspace over the Language Server Protocol.
//
// Messages arrive on a jsonrpc2 connection and are run one at a time on a
// single dispatcher goroutine that owns the Workspace. The file watcher
// submits its work to the same queue.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/jward/rulesls"
	"github.com/jward/rulesls/internal/checker"
	"github.com/jward/rulesls/internal/config"
	"github.com/jward/rulesls/internal/runtime"
)

// MethodCancelRequest is acknowledged and otherwise ignored.
const MethodCancelRequest = "$/cancelRequest"

// Options configures a Server.
type Options struct {
	Settings config.Settings
	Logger   *slog.Logger
	// Version is reported as serverInfo.version.
	Version string
	// Engine checks opened and saved files. Nil disables engine
	// diagnostics and keyword completion.
	Engine *checker.Engine
}

// Server is a language server for one workspace root.
type Server struct {
	settings config.Settings
	logger   *slog.Logger
	version  string
	engine   *checker.Engine

	ws      *rulesls.Workspace
	root    string
	project *config.Project
	layout  *config.Layout
	lint    *runtime.Runtime
	open    map[string]bool
	// pending holds messages queued before the client can receive them.
	pending []string
	// afterReply runs once the current request has been answered.
	afterReply func(context.Context, *jsonrpc2.Conn)

	conn    *jsonrpc2.Conn
	watcher *watcher

	jobs     chan func()
	done     chan struct{}
	stopOnce sync.Once

	handlers map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error)

// NewServer creates a Server. Serve starts it.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Settings.NThreads < 1 {
		opts.Settings.NThreads = 1
	}
	if opts.Settings.SyncType == 0 {
		opts.Settings.SyncType = config.SyncFull
	}
	s := &Server{
		settings: opts.Settings,
		logger:   opts.Logger,
		version:  opts.Version,
		engine:   opts.Engine,
		open:     make(map[string]bool),
		jobs:     make(chan func()),
		done:     make(chan struct{}),
	}
	s.ws = rulesls.New(
		rulesls.WithLogger(s.logger),
		rulesls.WithIncludeMembers(s.settings.IncludeMembers),
	)
	s.handlers = map[string]handlerFunc{
		protocol.MethodInitialize:                     s.initialize,
		protocol.MethodInitialized:                    noop,
		protocol.MethodShutdown:                       noop,
		protocol.MethodExit:                           s.exit,
		MethodCancelRequest:                           noop,
		protocol.MethodWorkspaceDidChangeWatchedFiles: noop,
		protocol.MethodTextDocumentDidOpen:            s.didOpen,
		protocol.MethodTextDocumentDidSave:            s.didSave,
		protocol.MethodTextDocumentDidClose:           s.didClose,
		protocol.MethodTextDocumentDidChange:          s.didChange,
		protocol.MethodTextDocumentDocumentSymbol:     s.documentSymbol,
		protocol.MethodTextDocumentCompletion:         s.completion,
		protocol.MethodTextDocumentSignatureHelp:      s.signatureHelp,
		protocol.MethodTextDocumentDefinition:         s.definition,
		protocol.MethodTextDocumentReferences:         s.references,
		protocol.MethodTextDocumentHover:              s.hover,
		protocol.MethodTextDocumentImplementation:     s.implementation,
		protocol.MethodTextDocumentRename:             s.rename,
		protocol.MethodWorkspaceSymbol:                s.workspaceSymbol,
		protocol.MethodTextDocumentCodeAction:         s.codeAction,
	}
	return s
}

// Workspace exposes the index. It must only be touched from a job.
func (s *Server) Workspace() *rulesls.Workspace {
	return s.ws
}

// Serve runs the server on rwc until the client disconnects, exit is
// received or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		s.dispatch(ctx)
	}()

	conn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}), s)
	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		conn.Close()
	}
	s.stop()
	cancel()
	// The watcher is set by a dispatcher job; read it only once the
	// dispatcher is gone.
	<-dispatched
	if s.watcher != nil {
		s.watcher.close()
	}
	return nil
}

func (s *Server) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// dispatch runs jobs until the server stops.
func (s *Server) dispatch(ctx context.Context) {
	for {
		select {
		case job := <-s.jobs:
			job()
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// submit runs fn on the dispatcher and waits for it. It reports false when
// the server has stopped.
func (s *Server) submit(fn func()) bool {
	finished := make(chan struct{})
	select {
	case s.jobs <- func() { defer close(finished); fn() }:
	case <-s.done:
		return false
	}
	<-finished
	return true
}

// Handle implements jsonrpc2.Handler.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if !req.Notif {
		s.logger.Debug(fmt.Sprintf("REQUEST %s %s", req.ID, req.Method))
	}
	s.submit(func() {
		s.conn = conn
		result, err := s.call(ctx, conn, req)
		if req.Notif {
			if err != nil && !errors.Is(err, errMethodNotFound) {
				s.logger.Warn("notification failed", "method", req.Method, "error", err)
			}
			return
		}
		if err != nil {
			if rerr := conn.ReplyWithError(ctx, req.ID, toRPCError(req.Method, err)); rerr != nil {
				s.logger.Warn("reply failed", "method", req.Method, "error", rerr)
			}
			return
		}
		if rerr := conn.Reply(ctx, req.ID, result); rerr != nil {
			s.logger.Warn("reply failed", "method", req.Method, "error", rerr)
		}
		if after := s.afterReply; after != nil {
			s.afterReply = nil
			after(ctx, conn)
		}
	})
}

var errMethodNotFound = errors.New("method not found")

// handlerError carries the stack of a failed handler to the client.
type handlerError struct {
	err       error
	traceback string
}

func (e *handlerError) Error() string { return e.err.Error() }
func (e *handlerError) Unwrap() error { return e.err }

// call runs the handler for req, turning a panic into an error.
func (s *Server) call(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result any, err error) {
	h, ok := s.handlers[req.Method]
	if !ok {
		return nil, errMethodNotFound
	}
	defer func() {
		if r := recover(); r != nil {
			err = &handlerError{err: fmt.Errorf("panic: %v", r), traceback: string(debug.Stack())}
		}
	}()
	result, err = h(ctx, conn, req)
	if err != nil {
		var he *handlerError
		if !errors.As(err, &he) {
			err = &handlerError{err: err, traceback: string(debug.Stack())}
		}
	}
	return result, err
}

func toRPCError(method string, err error) *jsonrpc2.Error {
	if errors.Is(err, errMethodNotFound) {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: fmt.Sprintf("method %s not found", method)}
	}
	e := &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	var he *handlerError
	if errors.As(err, &he) {
		e.SetError(map[string]string{"traceback": he.traceback})
	}
	return e
}

func noop(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
	return nil, nil
}

func decode[T any](req *jsonrpc2.Request) (*T, error) {
	var params T
	if req.Params == nil {
		return &params, nil
	}
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, fmt.Errorf("decode %s params: %w", req.Method, err)
	}
	return &params, nil
}

func (s *Server) showMessage(ctx context.Context, conn *jsonrpc2.Conn, typ protocol.MessageType, msg string) {
	if conn == nil {
		return
	}
	if err := conn.Notify(ctx, protocol.MethodWindowShowMessage, protocol.ShowMessageParams{Type: typ, Message: msg}); err != nil {
		s.logger.Warn("show message failed", "error", err)
	}
}

func (s *Server) initialize(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	params, err := decode[protocol.InitializeParams](req)
	if err != nil {
		return nil, err
	}
	if root, ok := pathOf(params.RootURI); ok {
		s.root = root
	} else if params.RootPath != "" {
		s.root = params.RootPath
	} else if len(params.WorkspaceFolders) > 0 {
		s.root, _ = pathOf(protocol.DocumentURI(params.WorkspaceFolders[0].URI))
	}
	if s.root != "" {
		s.load(ctx)
	}

	s.afterReply = func(ctx context.Context, conn *jsonrpc2.Conn) {
		for _, msg := range s.pending {
			s.showMessage(ctx, conn, protocol.MessageTypeWarning, msg)
		}
		s.pending = nil
		if s.settings.NotifyInit {
			s.showMessage(ctx, conn, protocol.MessageTypeInfo, "rulesls initialization complete")
		}
	}

	return protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncKind(s.settings.SyncType),
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{"%"},
			},
			SignatureHelpProvider: &protocol.SignatureHelpOptions{
				TriggerCharacters: []string{"(", ","},
			},
			HoverProvider:           true,
			DefinitionProvider:      true,
			ReferencesProvider:      true,
			ImplementationProvider:  true,
			RenameProvider:          true,
			CodeActionProvider:      true,
			DocumentSymbolProvider:  true,
			WorkspaceSymbolProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{Name: "rulesls", Version: s.version},
	}, nil
}

// load reads the project settings, discovers and indexes the rule files
// under root and prepares the engine and lint scripts. Problems become
// queued warnings.
func (s *Server) load(ctx context.Context) {
	fsys := os.DirFS(s.root)
	project, name, err := config.LoadProject(fsys)
	if err != nil {
		s.pending = append(s.pending, fmt.Sprintf("Error while parsing %q settings file: %v", name, err))
	}
	s.project = project

	layout, warnings := config.Discover(fsys, s.root, project)
	s.layout = layout
	s.pending = append(s.pending, warnings...)

	if s.engine != nil {
		cfg, err := config.ReadEngineConfig(fsys, project)
		if err != nil {
			s.pending = append(s.pending, err.Error())
		}
		s.engine.Config = cfg
		if kws, err := s.engine.Keywords(ctx); err != nil {
			s.logger.Warn("engine keywords unavailable", "error", err)
		} else {
			s.ws.SetKeywords(toKeywords(kws))
		}
	}
	if project != nil && len(project.LintScripts) > 0 {
		s.lint = runtime.NewRuntime(s.root, runtime.WithLogger(s.logger))
	}

	warnings, err = s.ws.Init(ctx, layout.Files, s.settings.NThreads)
	s.pending = append(s.pending, warnings...)
	if err != nil {
		s.logger.Warn("initialization cancelled", "error", err)
		return
	}
	s.logger.Info("workspace indexed", "root", s.root, "files", len(s.ws.Paths()), "dirs", len(layout.Dirs))

	if s.settings.Watch {
		w, err := newWatcher(s, layout.Dirs)
		if err != nil {
			s.pending = append(s.pending, fmt.Sprintf("File watching disabled: %v", err))
			return
		}
		s.watcher = w
	}
}

func toKeywords(kws []checker.Keyword) []rulesls.CompletionItem {
	items := make([]rulesls.CompletionItem, 0, len(kws))
	for _, k := range kws {
		items = append(items, rulesls.CompletionItem{
			Label:      k.Label,
			Detail:     k.Detail,
			Doc:        k.Doc,
			Markdown:   k.Markdown,
			Deprecated: k.Deprecated,
		})
	}
	return items
}

func (s *Server) exit(_ context.Context, conn *jsonrpc2.Conn, _ *jsonrpc2.Request) (any, error) {
	s.ws.Clear()
	s.stop()
	return nil, conn.Close()
}
