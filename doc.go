// Package rulesls keeps a live, incrementally updated symbol index over a
// workspace of rule files and answers the editor queries a language server
// needs: definition, references, signature help, rename, hover and outline.
//
// # Indexing
//
// A [Workspace] is built once with [Workspace.Init], which parses every file
// on a bounded worker pool and merges the results in path order. After that
// it is mutated only through [Workspace.Update] and [Workspace.Remove], one
// call at a time. Every mutation replaces the affected file's symbol tree
// wholesale and re-resolves type inheritance and method bindings across the
// workspace.
//
// # Usage
//
//	ws := rulesls.New(rulesls.WithLogger(logger))
//	warnings, err := ws.Init(ctx, paths, 4)
//	if err != nil { ... }
//
//	q := ws.Query()
//	sym := q.Resolve("rules/net.rules", 10, 7)
//	refs := q.ReferencesTo(sym)
//
// # Query API
//
// The [QueryBuilder] returned by [Workspace.Query] provides:
//
//   - [QueryBuilder.DefinitionAt]: where the name under the cursor is declared.
//   - [QueryBuilder.ReferencesTo]: every occurrence of a symbol.
//   - [QueryBuilder.SignatureAt]: the parameter list of the enclosing call.
//   - [QueryBuilder.Rename]: workspace edits renaming a symbol.
//   - [QueryBuilder.DocumentSymbols] and [QueryBuilder.WorkspaceSymbols]: outlines.
//   - [QueryBuilder.HoverAt], [QueryBuilder.ImplementationAt] and [QueryBuilder.Complete].
//
// Lines and columns are 0-based and columns count bytes. The lsp package
// converts to and from UTF-16 positions at the protocol boundary.
package rulesls
