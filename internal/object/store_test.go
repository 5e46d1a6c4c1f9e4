package object

import (
	"testing"
	"time"

	twigerrors "twig/internal/errors"
	"twig/internal/safe"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	require.NoError(t, err)

	blobs, err := safe.New(db, safe.Options{Root: "/objects", Fs: afero.NewMemMapFs()})
	require.NoError(t, err)

	return NewStore(db, blobs, zap.NewNop()), func() {
		blobs.Close()
		db.Close()
	}
}

func TestBlobContentAddressing(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	a, err := s.PutBlob([]byte("same"))
	require.NoError(t, err)
	b, err := s.PutBlob([]byte("same"))
	require.NoError(t, err)
	c, err := s.PutBlob([]byte("different"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	got, err := s.GetBlob(a)
	require.NoError(t, err)
	assert.Equal(t, "same", string(got))

	_, err = s.GetBlob(safe.HashContent([]byte("absent")))
	assert.ErrorIs(t, err, twigerrors.ErrNotFound)
}

func TestCommitDeterminism(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tracking := map[string]string{"a.txt": "111", "b.txt": "222"}

	base, err := NewCommit(ts, "msg", tracking, "p1")
	require.NoError(t, err)
	same, err := NewCommit(ts, "msg", map[string]string{"b.txt": "222", "a.txt": "111"}, "p1")
	require.NoError(t, err)
	assert.Equal(t, base.ID, same.ID)

	variants := map[string]func() (*Commit, error){
		"timestamp": func() (*Commit, error) { return NewCommit(ts.Add(time.Second), "msg", tracking, "p1") },
		"message":   func() (*Commit, error) { return NewCommit(ts, "other", tracking, "p1") },
		"tracking":  func() (*Commit, error) { return NewCommit(ts, "msg", map[string]string{"a.txt": "111"}, "p1") },
		"parent":    func() (*Commit, error) { return NewCommit(ts, "msg", tracking, "p2") },
		"parents":   func() (*Commit, error) { return NewCommit(ts, "msg", tracking, "p1", "p2") },
	}
	for name, build := range variants {
		t.Run(name, func(t *testing.T) {
			c, err := build()
			require.NoError(t, err)
			assert.NotEqual(t, base.ID, c.ID)
		})
	}
}

func TestCommitKinds(t *testing.T) {
	root := RootCommit()
	assert.Equal(t, Root, root.Kind())
	assert.Equal(t, InitialMessage, root.Message)
	assert.Empty(t, root.Tracking)
	assert.Equal(t, "", root.Parent())
	assert.Equal(t, int64(0), root.Timestamp.Unix())

	normal, err := NewCommit(time.Now(), "n", nil, root.ID)
	require.NoError(t, err)
	assert.Equal(t, Normal, normal.Kind())
	assert.Equal(t, root.ID, normal.Parent())

	merge, err := NewCommit(time.Now(), "m", nil, normal.ID, root.ID)
	require.NoError(t, err)
	assert.Equal(t, Merge, merge.Kind())
	assert.Equal(t, normal.ID, merge.Parent())

	_, err = NewCommit(time.Now(), "x", nil, "a", "b", "c")
	assert.Error(t, err)
}

func TestPutGetCommit(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	root := RootCommit()
	id, err := s.PutCommit(root)
	require.NoError(t, err)
	assert.Equal(t, root.ID, id)

	// storing again is harmless
	_, err = s.PutCommit(root)
	require.NoError(t, err)

	got, err := s.GetCommit(id)
	require.NoError(t, err)
	assert.Equal(t, root.ID, got.ID)
	assert.Equal(t, root.ID, got.computeID())
	assert.NotNil(t, got.Tracking)

	_, err = s.GetCommit("nope")
	assert.ErrorIs(t, err, twigerrors.ErrNotFound)

	tampered := *root
	tampered.Message = "changed"
	_, err = s.PutCommit(&tampered)
	assert.Error(t, err)

	ok, err := s.HasCommit(id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolvePrefix(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	// store commits until two share a first hex digit
	byFirst := map[byte][]string{}
	var shared byte
	for i := 0; ; i++ {
		c, err := NewCommit(time.Unix(int64(i+1), 0), "c", nil)
		require.NoError(t, err)
		_, err = s.PutCommit(c)
		require.NoError(t, err)

		byFirst[c.ID[0]] = append(byFirst[c.ID[0]], c.ID)
		if len(byFirst[c.ID[0]]) == 2 {
			shared = c.ID[0]
			break
		}
	}
	ids := byFirst[shared]

	_, err := s.ResolvePrefix(string(shared))
	assert.ErrorIs(t, err, twigerrors.ErrAmbiguousID)

	got, err := s.ResolvePrefix(ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], got)

	got, err = s.ResolvePrefix(ids[1][:20])
	require.NoError(t, err)
	assert.Equal(t, ids[1], got)

	_, err = s.ResolvePrefix("zzzz")
	assert.ErrorIs(t, err, twigerrors.ErrNotFound)

	_, err = s.ResolvePrefix("")
	assert.ErrorIs(t, err, twigerrors.ErrInvalidOperands)

	all, err := s.Commits()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 2)
}
