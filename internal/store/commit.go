package store

import "fmt"

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// IDs, and parent and symbol references within the batch are rewritten
// using the returned fakeToReal mapping.
//
// Symbols go first, in buffer order, so a parent is always committed before
// its children. References follow.
func (s *Store) CommitBatch(batch *BatchedStore) (map[int64]int64, error) {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64, len(batch.Symbols)+len(batch.References))

	for _, sym := range batch.Symbols {
		if sym.ParentID != nil && *sym.ParentID < 0 {
			realID, ok := fakeToReal[*sym.ParentID]
			if !ok {
				return nil, fmt.Errorf("commit batch: symbol %q has parent_id=%d not in batch", sym.Name, *sym.ParentID)
			}
			sym.ParentID = &realID
		}
		realID, err := insertSymbol(tx, &sym)
		if err != nil {
			return nil, fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	for _, ref := range batch.References {
		if ref.SymbolID < 0 {
			realID, ok := fakeToReal[ref.SymbolID]
			if !ok {
				return nil, fmt.Errorf("commit batch: reference at %d:%d has symbol_id=%d not in batch", ref.Line, ref.StartCol, ref.SymbolID)
			}
			ref.SymbolID = realID
		}
		realID, err := insertReference(tx, &ref)
		if err != nil {
			return nil, fmt.Errorf("commit batch: reference: %w", err)
		}
		fakeToReal[ref.ID] = realID
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	batch.Symbols = nil
	batch.References = nil
	return fakeToReal, nil
}
