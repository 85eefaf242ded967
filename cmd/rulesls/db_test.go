package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/rulesls/internal/store"
)

func exportedStore(t *testing.T) (st *store.Store, a, b string) {
	t.Helper()
	dir := t.TempDir()
	a = writeFile(t, dir, "a.rules", typeFile)
	b = writeFile(t, dir, "b.rules", useFile)
	dbPath := filepath.Join(dir, "rulesls.db")
	_, err := exportTo(context.Background(), load(t, dir), dbPath)
	require.NoError(t, err)

	st, err = openExported(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, a, b
}

func TestLookupStored_SymbolMembersAndReferences(t *testing.T) {
	t.Parallel()
	st, a, b := exportedStore(t)

	syms, err := lookupStored(st, "T")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	got := syms[0]
	assert.Equal(t, "type", got.Kind)
	assert.Equal(t, "t", got.FQSN)
	assert.Equal(t, a, got.File)
	assert.Equal(t, 0, got.StartLine)
	assert.Equal(t, 2, got.EndLine)

	require.Len(t, got.Children, 1)
	assert.Equal(t, "foo", got.Children[0].Name)
	assert.Equal(t, "t::foo", got.Children[0].FQSN)
	assert.Equal(t, 1, got.Children[0].StartLine)

	assert.Contains(t, got.References, CLILocation{File: b, StartLine: 1, StartCol: 10, EndLine: 1, EndCol: 11})
}

func TestLookupStored_Unknown(t *testing.T) {
	t.Parallel()
	st, _, _ := exportedStore(t)

	syms, err := lookupStored(st, "nope")
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestStoredRefsIn(t *testing.T) {
	t.Parallel()
	st, _, b := exportedStore(t)

	refs, err := storedRefsIn(st, b)
	require.NoError(t, err)
	assert.Contains(t, refs, CLIStoredReference{
		Symbol:      "t",
		CLILocation: CLILocation{File: b, StartLine: 1, StartCol: 10, EndLine: 1, EndCol: 11},
	})
	assert.Contains(t, refs, CLIStoredReference{
		Symbol:      "t::foo",
		CLILocation: CLILocation{File: b, StartLine: 2, StartCol: 8, EndLine: 2, EndCol: 11},
	})

	_, err = storedRefsIn(st, filepath.Join(filepath.Dir(b), "missing.rules"))
	assert.ErrorContains(t, err, "was not exported")
}

func TestOpenExported_MissingDatabase(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "rulesls.db")
	_, err := openExported(dbPath)
	assert.EqualError(t, err, "no database at "+dbPath+": run export first")
}
