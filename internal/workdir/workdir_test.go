package workdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	twigerrors "twig/internal/errors"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapBlobs map[string]string

func (m mapBlobs) GetBlob(id string) ([]byte, error) {
	data, ok := m[id]
	if !ok {
		return nil, twigerrors.NotFound("File does not exist.")
	}
	return []byte(data), nil
}

func newMemTree(t *testing.T, files map[string]string) *Tree {
	tree := NewTree(afero.NewMemMapFs())
	for p, data := range files {
		require.NoError(t, tree.WriteFile(p, []byte(data)))
	}
	return tree
}

func TestEntriesSkipsMetaOnly(t *testing.T) {
	tree := newMemTree(t, map[string]string{
		"a.txt":                 "a",
		"dir/b.txt":             "b",
		".env":                  "h",
		".twig/db/x":            "x",
		"dir/.cache/one":        "1",
		"dir/.twig-tmp-1234567": "partial",
	})

	entries, err := tree.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{".env", "a.txt", "dir/.cache/one", "dir/b.txt"}, entries)
}

func TestWriteReadRemove(t *testing.T) {
	tree := newMemTree(t, nil)

	require.NoError(t, tree.WriteFile("f.txt", []byte("one")))
	require.NoError(t, tree.WriteFile("f.txt", []byte("two")))

	data, err := tree.ReadFile("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	ok, err := tree.Exists("f.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, tree.Remove("f.txt"))
	require.NoError(t, tree.Remove("f.txt"))

	ok, err = tree.Exists("f.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := tree.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVerifyNoUntrackedConflict(t *testing.T) {
	tests := []struct {
		name    string
		current map[string]string
		target  map[string]string
		entries []string
		wantErr bool
	}{
		{"tracked file overwritten", map[string]string{"a": "1"}, map[string]string{"a": "2"}, []string{"a"}, false},
		{"untracked not in target", map[string]string{}, map[string]string{"b": "2"}, []string{"a"}, false},
		{"untracked in target", map[string]string{}, map[string]string{"a": "2"}, []string{"a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyNoUntrackedConflict(tt.current, tt.target, tt.entries)
			if tt.wantErr {
				assert.ErrorIs(t, err, twigerrors.ErrUntrackedOverwrite)
				assert.Equal(t, twigerrors.MsgUntrackedInTheWay, err.Error())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestApply(t *testing.T) {
	tree := newMemTree(t, map[string]string{"keep.txt": "old", "gone.txt": "g", "untracked.txt": "u"})
	blobs := mapBlobs{"k2": "new", "n1": "fresh"}

	current := map[string]string{"keep.txt": "k1", "gone.txt": "g1"}
	target := map[string]string{"keep.txt": "k2", "sub/new.txt": "n1"}
	require.NoError(t, tree.Apply(target, current, blobs))

	entries, err := tree.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt", "sub/new.txt", "untracked.txt"}, entries)

	data, err := tree.ReadFile("keep.txt")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestApplyChangesTouchesOnlyListedPaths(t *testing.T) {
	tree := newMemTree(t, map[string]string{"edited.txt": "local", "theirs.txt": "t0", "gone.txt": "g"})
	blobs := mapBlobs{"t1": "t1"}

	require.NoError(t, tree.ApplyChanges(map[string]string{"theirs.txt": "t1"}, []string{"gone.txt"}, blobs))

	entries, err := tree.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"edited.txt", "theirs.txt"}, entries)

	data, err := tree.ReadFile("edited.txt")
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
	data, err = tree.ReadFile("theirs.txt")
	require.NoError(t, err)
	assert.Equal(t, "t1", string(data))
}

func TestApplyMissingBlobLeavesTreeUntouched(t *testing.T) {
	tree := newMemTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	blobs := mapBlobs{"x": "changed"}

	current := map[string]string{"a.txt": "a1", "b.txt": "b1"}
	target := map[string]string{"a.txt": "x", "c.txt": "missing"}

	err := tree.Apply(target, current, blobs)
	assert.ErrorIs(t, err, twigerrors.ErrNotFound)

	entries, err := tree.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, entries)
	data, err := tree.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint([]byte("x")), Fingerprint([]byte("x")))
	assert.NotEqual(t, Fingerprint([]byte("x")), Fingerprint([]byte("y")))
}

func TestWatchRequiresRoot(t *testing.T) {
	tree := newMemTree(t, nil)
	err := tree.Watch(context.Background(), zap.NewNop(), func(string) {})
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestWatchReportsChanges(t *testing.T) {
	root := t.TempDir()
	tree := OpenTree(root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- tree.Watch(ctx, zap.NewNop(), func(p string) { seen <- p })
	}()

	// give the watcher time to register the root
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "w.txt"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, MetaDir), 0755))

	select {
	case p := <-seen:
		assert.Equal(t, "w.txt", p)
	case <-time.After(5 * time.Second):
		t.Fatal("no watch event")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
