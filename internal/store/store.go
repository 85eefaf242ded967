package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite snapshot of an indexed workspace.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for ad hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  fqsn            TEXT NOT NULL,
  start_line      INTEGER,
  end_line        INTEGER,
  parent_id       INTEGER REFERENCES symbols(id),
  type_name       TEXT,
  link_fqsn       TEXT
);

CREATE TABLE IF NOT EXISTS references_ (
  id              INTEGER PRIMARY KEY,
  symbol_id       INTEGER NOT NULL REFERENCES symbols(id),
  file_id         INTEGER NOT NULL REFERENCES files(id),
  line            INTEGER,
  start_col       INTEGER,
  end_col         INTEGER
);

CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_fqsn ON symbols(fqsn);
CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_id);
CREATE INDEX IF NOT EXISTS idx_references_symbol ON references_(symbol_id);
CREATE INDEX IF NOT EXISTS idx_references_file ON references_(file_id);
`

// DeleteFileData transactionally removes the symbols declared in a file, the
// references found in it and the references elsewhere that point at its
// symbols. The files row itself is kept.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM symbols WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("query symbols: %w", err)
	}
	var symbolIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan symbol id: %w", err)
		}
		symbolIDs = append(symbolIDs, id)
	}
	rows.Close()

	if len(symbolIDs) > 0 {
		q := "DELETE FROM references_ WHERE symbol_id IN (" + placeholderList(len(symbolIDs)) + ")"
		if _, err := tx.Exec(q, int64sToArgs(symbolIDs)...); err != nil {
			return fmt.Errorf("delete references to symbols: %w", err)
		}
	}
	if _, err := tx.Exec("DELETE FROM references_ WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete references in file: %w", err)
	}
	// Children point at their parents, so break those links before the rows
	// go.
	if _, err := tx.Exec("UPDATE symbols SET parent_id = NULL WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("detach symbols: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM symbols WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete symbols: %w", err)
	}
	return tx.Commit()
}

// DeleteFile removes a file row along with everything DeleteFileData removes.
func (s *Store) DeleteFile(fileID int64) error {
	if err := s.DeleteFileData(fileID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return nil
}

// ClearReferences empties references_.
func (s *Store) ClearReferences() error {
	if _, err := s.db.Exec("DELETE FROM references_"); err != nil {
		return fmt.Errorf("clear references: %w", err)
	}
	return nil
}
