package rulesls

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/rulesls/internal/store"
	"github.com/jward/rulesls/internal/symbols"
)

// ExportStats summarizes one Export run.
type ExportStats struct {
	Files      int
	Unchanged  int
	Symbols    int
	References int
}

// Export writes a snapshot of the workspace into st. Files whose stored hash
// matches the loaded content keep their symbol rows; everything else is
// rewritten. Files no longer in the workspace are dropped from the database.
// When anything was rewritten or dropped, the references of every
// module-level and type-level symbol are recomputed.
func (w *Workspace) Export(ctx context.Context, st *store.Store) (*ExportStats, error) {
	stats := &ExportStats{}
	now := time.Now()
	fileIDs := make(map[string]int64, len(w.files))
	var changed []string

	for _, path := range w.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rulesls: export: %w", err)
		}
		fi := w.files[path]
		existing, err := st.FileByPath(path)
		if err != nil {
			return nil, fmt.Errorf("rulesls: export: %w", err)
		}
		if existing != nil {
			fileIDs[path] = existing.ID
			if existing.Hash == fi.File.Hash {
				stats.Unchanged++
				continue
			}
			if err := st.DeleteFileData(existing.ID); err != nil {
				return nil, fmt.Errorf("rulesls: export: delete old data for %s: %w", path, err)
			}
			existing.Hash = fi.File.Hash
			existing.LastIndexed = now
			if err := st.UpdateFile(existing); err != nil {
				return nil, fmt.Errorf("rulesls: export: %w", err)
			}
		} else {
			id, err := st.InsertFile(&store.File{Path: path, Hash: fi.File.Hash, LastIndexed: now})
			if err != nil {
				return nil, fmt.Errorf("rulesls: export: %w", err)
			}
			fileIDs[path] = id
		}
		changed = append(changed, path)
	}

	dropped, err := w.dropStale(st)
	if err != nil {
		return nil, err
	}

	// Symbols first, one transaction per file, so reference rows can point
	// at real IDs.
	type exported struct {
		sym *symbols.Symbol
		id  int64
	}
	var targets []exported
	for _, path := range changed {
		batch := store.NewBatchedStore(st)
		fakes := make(map[symbols.ID]int64)
		tree := w.files[path].Tree
		for i := range tree.Symbols {
			s := &tree.Symbols[i]
			row := &store.Symbol{
				FileID:    fileIDs[path],
				Name:      s.Name,
				Kind:      s.Kind.String(),
				FQSN:      s.FQSN,
				StartLine: s.StartLine,
				EndLine:   s.EndLine,
				TypeName:  s.TypeName,
				LinkFQSN:  w.linkFQSN(s),
			}
			if s.Parent != symbols.NoID {
				parent := fakes[s.Parent]
				row.ParentID = &parent
			}
			fake, err := batch.InsertSymbol(row)
			if err != nil {
				return nil, fmt.Errorf("rulesls: export: %w", err)
			}
			fakes[s.ID] = fake
		}
		fakeToReal, err := st.CommitBatch(batch)
		if err != nil {
			return nil, fmt.Errorf("rulesls: export: %s: %w", path, err)
		}
		stats.Files++
		stats.Symbols += len(tree.Symbols)
		for i := range tree.Symbols {
			s := &tree.Symbols[i]
			if exportsReferences(s) {
				targets = append(targets, exported{s, fakeToReal[fakes[s.ID]]})
			}
		}
	}

	if len(changed) == 0 && dropped == 0 {
		w.logger.Debug("workspace export unchanged", "files", stats.Unchanged)
		return stats, nil
	}

	// A rewritten file can gain or lose hits on any symbol, so every
	// reference row is recomputed.
	if err := st.ClearReferences(); err != nil {
		return nil, fmt.Errorf("rulesls: export: %w", err)
	}
	rewritten := make(map[string]bool, len(changed))
	for _, p := range changed {
		rewritten[p] = true
	}
	for _, path := range w.Paths() {
		if rewritten[path] {
			continue
		}
		rows, err := st.SymbolsByFile(fileIDs[path])
		if err != nil {
			return nil, fmt.Errorf("rulesls: export: %w", err)
		}
		tree := w.files[path].Tree
		if len(rows) != len(tree.Symbols) {
			return nil, fmt.Errorf("rulesls: export: %s: stored symbols out of date", path)
		}
		for i := range tree.Symbols {
			if s := &tree.Symbols[i]; exportsReferences(s) {
				targets = append(targets, exported{s, rows[i].ID})
			}
		}
	}

	q := w.Query()
	batch := store.NewBatchedStore(st)
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rulesls: export: %w", err)
		}
		refs := q.ReferencesTo(t.sym)
		for path, spans := range refs.Files {
			for _, sp := range spans {
				if _, err := batch.InsertReference(&store.Reference{
					SymbolID: t.id,
					FileID:   fileIDs[path],
					Line:     sp.Line,
					StartCol: sp.StartCol,
					EndCol:   sp.EndCol,
				}); err != nil {
					return nil, fmt.Errorf("rulesls: export: %w", err)
				}
				stats.References++
			}
		}
	}
	if _, err := st.CommitBatch(batch); err != nil {
		return nil, fmt.Errorf("rulesls: export: references: %w", err)
	}
	w.logger.Debug("workspace exported", "files", stats.Files, "unchanged", stats.Unchanged, "symbols", stats.Symbols, "references", stats.References)
	return stats, nil
}

// dropStale deletes file rows for paths the workspace no longer holds.
func (w *Workspace) dropStale(st *store.Store) (int, error) {
	files, err := st.Files()
	if err != nil {
		return 0, fmt.Errorf("rulesls: export: %w", err)
	}
	n := 0
	for _, f := range files {
		if _, ok := w.files[f.Path]; ok {
			continue
		}
		if err := st.DeleteFile(f.ID); err != nil {
			return n, fmt.Errorf("rulesls: export: drop %s: %w", f.Path, err)
		}
		n++
	}
	return n, nil
}

// exportsReferences reports whether s is declared at file level, directly in
// a module or directly in a type.
func exportsReferences(s *symbols.Symbol) bool {
	p := s.ParentSymbol()
	return p == nil || p.Kind == symbols.KindModule || p.Kind == symbols.KindType
}

func (w *Workspace) linkFQSN(s *symbols.Symbol) string {
	var target *symbols.Symbol
	switch s.Kind {
	case symbols.KindType:
		target = w.Deref(s.Inherit)
	case symbols.KindMethod:
		target = w.Deref(s.Link)
	case symbols.KindVariable:
		target = w.typeOf(s)
	}
	if target == nil {
		return ""
	}
	return target.FQSN
}
