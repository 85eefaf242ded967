package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, hash, last_indexed) VALUES (?, ?, ?)",
		f.Path, f.Hash, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// FileByPath returns nil, nil when the path was never exported.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, COALESCE(hash, ''), last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &f.LastIndexed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// UpdateFile rewrites the hash and timestamp of an existing file row.
func (s *Store) UpdateFile(f *File) error {
	if _, err := s.db.Exec("UPDATE files SET hash = ?, last_indexed = ? WHERE id = ?", f.Hash, f.LastIndexed, f.ID); err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// Files lists every file row ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, COALESCE(hash, ''), last_indexed FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Hash, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Symbol operations ---

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	id, err := insertSymbol(s.db, sym)
	if err != nil {
		return 0, err
	}
	sym.ID = id
	return id, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertSymbol(db execer, sym *Symbol) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO symbols (file_id, name, kind, fqsn, start_line, end_line, parent_id, type_name, link_fqsn)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.Kind, sym.FQSN, sym.StartLine, sym.EndLine, sym.ParentID,
		nullString(sym.TypeName), nullString(sym.LinkFQSN),
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

const symbolCols = "id, file_id, name, kind, fqsn, start_line, end_line, parent_id, COALESCE(type_name, ''), COALESCE(link_fqsn, '')"

func scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	var parent sql.NullInt64
	err := scanner.Scan(&sym.ID, &sym.FileID, &sym.Name, &sym.Kind, &sym.FQSN,
		&sym.StartLine, &sym.EndLine, &parent, &sym.TypeName, &sym.LinkFQSN)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		sym.ParentID = &parent.Int64
	}
	return sym, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()
	var syms []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		syms = append(syms, sym)
	}
	return syms, rows.Err()
}

func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE file_id = ? ORDER BY id", fileID)
}

// SymbolsByName matches names case-insensitively, as the rule language does.
func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE name = ? COLLATE NOCASE ORDER BY id", name)
}

// SymbolByID returns nil, nil when no symbol has the id.
func (s *Store) SymbolByID(id int64) (*Symbol, error) {
	sym, err := scanSymbol(s.db.QueryRow("SELECT "+symbolCols+" FROM symbols WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by id: %w", err)
	}
	return sym, nil
}

func (s *Store) SymbolsByFQSN(fqsn string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE fqsn = ? ORDER BY id", fqsn)
}

func (s *Store) SymbolChildren(symbolID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE parent_id = ? ORDER BY id", symbolID)
}

// --- Reference operations ---

func (s *Store) InsertReference(ref *Reference) (int64, error) {
	id, err := insertReference(s.db, ref)
	if err != nil {
		return 0, err
	}
	ref.ID = id
	return id, nil
}

func insertReference(db execer, ref *Reference) (int64, error) {
	res, err := db.Exec(
		"INSERT INTO references_ (symbol_id, file_id, line, start_col, end_col) VALUES (?, ?, ?, ?, ?)",
		ref.SymbolID, ref.FileID, ref.Line, ref.StartCol, ref.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *Store) queryReferences(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		r := &Reference{}
		if err := rows.Scan(&r.ID, &r.SymbolID, &r.FileID, &r.Line, &r.StartCol, &r.EndCol); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// ReferencesTo returns the occurrences of a symbol ordered by file and
// position.
func (s *Store) ReferencesTo(symbolID int64) ([]*Reference, error) {
	return s.queryReferences(
		"SELECT id, symbol_id, file_id, line, start_col, end_col FROM references_ WHERE symbol_id = ? ORDER BY file_id, line, start_col",
		symbolID,
	)
}

func (s *Store) ReferencesByFile(fileID int64) ([]*Reference, error) {
	return s.queryReferences(
		"SELECT id, symbol_id, file_id, line, start_col, end_col FROM references_ WHERE file_id = ? ORDER BY line, start_col",
		fileID,
	)
}
