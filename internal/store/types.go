package store

import "time"

// File is one indexed rule file.
type File struct {
	ID          int64
	Path        string
	Hash        string
	LastIndexed time.Time
}

// Symbol is one declaration. Lines are 1-based, as the parser records them.
// ParentID is nil for file-level declarations.
type Symbol struct {
	ID        int64
	FileID    int64
	Name      string
	Kind      string
	FQSN      string
	StartLine int
	EndLine   int
	ParentID  *int64
	TypeName  string
	// LinkFQSN is the FQSN of the resolved binding, parent type or variable
	// type, empty when the link did not resolve.
	LinkFQSN string
}

// Reference is one occurrence of a symbol's name. Line and columns are
// 0-based; columns are byte offsets.
type Reference struct {
	ID       int64
	SymbolID int64
	FileID   int64
	Line     int
	StartCol int
	EndCol   int
}
