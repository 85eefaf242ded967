package store

// DataStore is the write side used while exporting a workspace. Both Store
// (direct SQLite) and BatchedStore (buffered until CommitBatch) implement it.
type DataStore interface {
	InsertSymbol(sym *Symbol) (int64, error)
	InsertReference(ref *Reference) (int64, error)

	SymbolsByName(name string) ([]*Symbol, error)
	SymbolsByFile(fileID int64) ([]*Symbol, error)
}

var _ DataStore = (*Store)(nil)
