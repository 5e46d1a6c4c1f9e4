// Package testutil builds in-memory storage for tests.
package testutil

import (
	"testing"

	"twig/internal/object"
	"twig/internal/safe"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewDB opens an in-memory badger database closed at test cleanup.
func NewDB(t testing.TB) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// NewObjectStore returns an object store over db with blob files kept in memory.
func NewObjectStore(t testing.TB, db *badger.DB) *object.Store {
	t.Helper()

	blobs, err := safe.New(db, safe.Options{Root: "/objects", Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	t.Cleanup(blobs.Close)

	return object.NewStore(db, blobs, zap.NewNop())
}
