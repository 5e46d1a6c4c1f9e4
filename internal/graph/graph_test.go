package graph

import (
	"strings"
	"testing"
	"time"

	twigerrors "twig/internal/errors"
	"twig/internal/object"
	"twig/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type builder struct {
	t     *testing.T
	store *object.Store
	clock time.Time
}

func newBuilder(t *testing.T) (*builder, string) {
	store := testutil.NewObjectStore(t, testutil.NewDB(t))
	root := object.RootCommit()
	_, err := store.PutCommit(root)
	require.NoError(t, err)
	return &builder{t: t, store: store, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, root.ID
}

func (b *builder) commit(msg string, parents ...string) string {
	b.clock = b.clock.Add(time.Minute)
	c, err := object.NewCommit(b.clock, msg, nil, parents...)
	require.NoError(b.t, err)
	id, err := b.store.PutCommit(c)
	require.NoError(b.t, err)
	return id
}

func collect(t *testing.T, seq func(func(*object.Commit, error) bool)) []string {
	var ids []string
	for c, err := range seq {
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	return ids
}

func TestAncestorsTerminatesAtRoot(t *testing.T) {
	b, root := newBuilder(t)
	c1 := b.commit("one", root)
	c2 := b.commit("two", c1)
	g := New(b.store)

	ids := collect(t, g.Ancestors(c2))
	assert.Equal(t, []string{c2, c1, root}, ids)

	// restartable
	assert.Equal(t, ids, collect(t, g.Ancestors(c2)))

	chain := collect(t, g.FirstParent(c2))
	last, err := b.store.GetCommit(chain[len(chain)-1])
	require.NoError(t, err)
	assert.Equal(t, object.Root, last.Kind())
	assert.Empty(t, last.Tracking)
}

func TestAncestorsVisitsMergeParentsOnce(t *testing.T) {
	b, root := newBuilder(t)
	left := b.commit("left", root)
	right := b.commit("right", root)
	m := b.commit("merge", left, right)
	g := New(b.store)

	ids := collect(t, g.Ancestors(m))
	assert.Equal(t, []string{m, left, right, root}, ids)
	assert.Equal(t, []string{m, left, root}, collect(t, g.FirstParent(m)))

	ok, err := g.IsAncestor(right, m)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsAncestor(m, right)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAncestorsStopsEarly(t *testing.T) {
	b, root := newBuilder(t)
	c1 := b.commit("one", root)
	g := New(b.store)

	var seen int
	for range g.Ancestors(c1) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestAncestorsMissingCommit(t *testing.T) {
	b, _ := newBuilder(t)
	g := New(b.store)

	for c, err := range g.Ancestors("deadbeef") {
		assert.Nil(t, c)
		assert.ErrorIs(t, err, twigerrors.ErrNotFound)
	}
}

func TestSplitPoint(t *testing.T) {
	b, root := newBuilder(t)
	base := b.commit("base", root)
	a1 := b.commit("a1", base)
	b1 := b.commit("b1", base)
	g := New(b.store)

	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"diverged", a1, b1, base},
		{"same", a1, a1, a1},
		{"ancestor", base, a1, base},
		{"descendant", a1, base, base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.SplitPoint(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitPointAfterRepeatedMerge(t *testing.T) {
	b, root := newBuilder(t)
	base := b.commit("base", root)
	main1 := b.commit("main1", base)
	side1 := b.commit("side1", base)
	merged := b.commit("merge side", main1, side1)
	side2 := b.commit("side2", side1)
	main2 := b.commit("main2", merged)
	g := New(b.store)

	// the true merge base is side1, not base
	got, err := g.SplitPoint(main2, side2)
	require.NoError(t, err)
	assert.Equal(t, side1, got)
}

func TestHistoryAndLogFormat(t *testing.T) {
	b, root := newBuilder(t)
	c1 := b.commit("first", root)
	other := b.commit("other", root)
	m := b.commit("Merged other into master.", c1, other)
	g := New(b.store)

	entries, err := g.History(m)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, m, entries[0].ID)
	assert.Equal(t, object.InitialMessage, entries[2].Message)

	text := entries[0].String()
	assert.True(t, strings.HasPrefix(text, "===\ncommit "+m+"\nMerge: "+c1[:7]+" "+other[:7]+"\nDate: "))
	assert.True(t, strings.HasSuffix(text, "\nMerged other into master.\n\n"))

	assert.NotContains(t, entries[1].String(), "Merge:")
	assert.Contains(t, entries[2].String(), "Date: "+time.Unix(0, 0).Local().Format(DateLayout)+"\n")
}

func TestAllAndFind(t *testing.T) {
	b, root := newBuilder(t)
	x := b.commit("fix", root)
	y := b.commit("fix", x)
	b.commit("feature", y)
	g := New(b.store)

	all, err := g.All()
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "feature", all[0].Message)
	assert.Equal(t, root, all[3].ID)

	ids, err := g.Find("fix")
	require.NoError(t, err)
	assert.Equal(t, []string{y, x}, ids)

	_, err = g.Find("nothing")
	assert.ErrorIs(t, err, twigerrors.ErrNotFound)
}
