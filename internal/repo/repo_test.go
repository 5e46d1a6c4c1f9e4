package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	twigerrors "twig/internal/errors"
	"twig/internal/logging"
	"twig/internal/merge"
	"twig/internal/object"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClock() func() time.Time {
	t := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func testOptions() Options {
	return Options{Logger: logging.Nop(), Now: testClock()}
}

func setupRepo(t *testing.T) (*Repo, string) {
	dir := t.TempDir()
	r, err := Init(dir, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, dir
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func read(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
	return err == nil
}

func commitFile(t *testing.T, r *Repo, dir, name, content, msg string) string {
	t.Helper()
	write(t, dir, name, content)
	require.NoError(t, r.Add(name))
	id, err := r.Commit(msg)
	require.NoError(t, err)
	return id
}

func TestInitAndOpen(t *testing.T) {
	r, dir := setupRepo(t)

	log, err := r.Log()
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, object.InitialMessage, log[0].Message)
	assert.Equal(t, int64(0), log[0].Timestamp.Unix())

	st, err := r.Status()
	require.NoError(t, err)
	assert.Equal(t, "master", st.Current)

	_, err = Init(dir, testOptions())
	assert.ErrorIs(t, err, twigerrors.ErrAlreadyInitialized)

	_, err = Open(dir, testOptions())
	assert.ErrorIs(t, err, twigerrors.ErrLocked)

	_, err = Open(t.TempDir(), testOptions())
	assert.ErrorIs(t, err, twigerrors.ErrNotInitialized)

	assert.FileExists(t, filepath.Join(dir, ".twig", "config.json"))
}

func TestReopenKeepsState(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, testOptions())
	require.NoError(t, err)
	id := commitFile(t, r, dir, "a.txt", "hello", "first")
	require.NoError(t, r.Branch("dev"))
	require.NoError(t, r.Close())

	r, err = Open(dir, testOptions())
	require.NoError(t, err)
	defer r.Close()

	log, err := r.Log()
	require.NoError(t, err)
	assert.Equal(t, id, log[0].ID)

	st, err := r.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "master"}, st.Branches)
}

func TestCommitPreconditions(t *testing.T) {
	r, _ := setupRepo(t)

	_, err := r.Commit("nothing")
	assert.ErrorIs(t, err, twigerrors.ErrNothingToDo)
	assert.Equal(t, "No changes added to the commit.", err.Error())

	_, err = r.Commit("")
	assert.Equal(t, "Please enter a commit message.", err.Error())
}

func TestAddCommitRemove(t *testing.T) {
	r, dir := setupRepo(t)
	first := commitFile(t, r, dir, "a.txt", "v1", "add a")

	c, err := r.ResolveCommit(first)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, c.Tracked())

	require.NoError(t, r.Remove("a.txt"))
	assert.False(t, exists(dir, "a.txt"))
	second, err := r.Commit("remove a")
	require.NoError(t, err)

	c, err = r.ResolveCommit(second)
	require.NoError(t, err)
	assert.Empty(t, c.Tracking)
	assert.Equal(t, first, c.Parent())

	err = r.Remove("a.txt")
	assert.ErrorIs(t, err, twigerrors.ErrNothingToDo)
}

func TestRecommitUnchangedFileReusesBlob(t *testing.T) {
	r, dir := setupRepo(t)
	first := commitFile(t, r, dir, "a.txt", "same", "add a")

	write(t, dir, "a.txt", "edited")
	require.NoError(t, r.CheckoutFile("a.txt"))
	assert.Equal(t, "same", read(t, dir, "a.txt"))

	require.NoError(t, r.Add("a.txt"))
	write(t, dir, "b.txt", "b")
	require.NoError(t, r.Add("b.txt"))
	second, err := r.Commit("add b")
	require.NoError(t, err)

	c1, err := r.ResolveCommit(first)
	require.NoError(t, err)
	c2, err := r.ResolveCommit(second)
	require.NoError(t, err)
	assert.Equal(t, c1.Tracking["a.txt"], c2.Tracking["a.txt"])
}

func TestStatus(t *testing.T) {
	r, dir := setupRepo(t)
	commitFile(t, r, dir, "tracked.txt", "t", "one")
	commitFile(t, r, dir, "gone.txt", "g", "two")
	commitFile(t, r, dir, "rm.txt", "r", "three")
	require.NoError(t, r.Branch("other"))

	write(t, dir, "staged.txt", "s")
	require.NoError(t, r.Add("staged.txt"))
	write(t, dir, "staged.txt", "s2")
	require.NoError(t, r.Remove("rm.txt"))
	write(t, dir, "tracked.txt", "changed")
	require.NoError(t, os.Remove(filepath.Join(dir, "gone.txt")))
	write(t, dir, "new.txt", "n")

	st, err := r.Status()
	require.NoError(t, err)

	want := "=== Branches ===\n*master\nother\n\n" +
		"=== Staged Files ===\nstaged.txt\n\n" +
		"=== Removed Files ===\nrm.txt\n\n" +
		"=== Modifications Not Staged For Commit ===\ngone.txt (deleted)\nstaged.txt (modified)\ntracked.txt (modified)\n\n" +
		"=== Untracked Files ===\nnew.txt\n\n"
	assert.Equal(t, want, st.String())
}

func TestCheckoutBranch(t *testing.T) {
	r, dir := setupRepo(t)
	commitFile(t, r, dir, "a.txt", "master", "on master")
	require.NoError(t, r.Branch("dev"))
	require.NoError(t, r.CheckoutBranch("dev"))
	commitFile(t, r, dir, "b.txt", "dev", "on dev")

	require.NoError(t, r.CheckoutBranch("master"))
	assert.False(t, exists(dir, "b.txt"))
	assert.Equal(t, "master", read(t, dir, "a.txt"))

	err := r.CheckoutBranch("master")
	assert.Equal(t, "No need to checkout the current branch.", err.Error())

	err = r.CheckoutBranch("ghost")
	assert.Equal(t, "No such branch exists.", err.Error())

	write(t, dir, "b.txt", "untracked")
	err = r.CheckoutBranch("dev")
	assert.ErrorIs(t, err, twigerrors.ErrUntrackedOverwrite)
	assert.Equal(t, "untracked", read(t, dir, "b.txt"))

	st, err := r.Status()
	require.NoError(t, err)
	assert.Equal(t, "master", st.Current)
}

func TestDotfilesAreTracked(t *testing.T) {
	r, dir := setupRepo(t)
	commitFile(t, r, dir, "a.txt", "a", "base")
	require.NoError(t, r.Branch("other"))
	require.NoError(t, r.CheckoutBranch("other"))
	commitFile(t, r, dir, ".env", "theirs", "add env")
	require.NoError(t, r.CheckoutBranch("master"))
	assert.False(t, exists(dir, ".env"))

	write(t, dir, ".env", "my local secret")
	err := r.CheckoutBranch("other")
	assert.ErrorIs(t, err, twigerrors.ErrUntrackedOverwrite)
	assert.Equal(t, "my local secret", read(t, dir, ".env"))

	st, err := r.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{".env"}, st.Untracked)

	require.NoError(t, os.Remove(filepath.Join(dir, ".env")))
	require.NoError(t, r.CheckoutBranch("other"))
	assert.Equal(t, "theirs", read(t, dir, ".env"))

	commitFile(t, r, dir, ".config/x", "cfg", "add nested dotfile")
	st, err = r.Status()
	require.NoError(t, err)
	assert.Empty(t, st.Modified)
	assert.Empty(t, st.Untracked)
}

func TestCheckoutCommitFileAndReset(t *testing.T) {
	r, dir := setupRepo(t)
	first := commitFile(t, r, dir, "a.txt", "v1", "v1")
	commitFile(t, r, dir, "a.txt", "v2", "v2")

	require.NoError(t, r.CheckoutCommitFile(first[:8], "a.txt"))
	assert.Equal(t, "v1", read(t, dir, "a.txt"))

	err := r.CheckoutCommitFile(first[:8], "nope.txt")
	assert.Equal(t, "File does not exist in that commit.", err.Error())

	err = r.CheckoutCommitFile("ffffffffff", "a.txt")
	assert.Equal(t, twigerrors.MsgNoSuchCommit, err.Error())

	commitFile(t, r, dir, "b.txt", "b", "add b")
	require.NoError(t, r.Reset(first))
	assert.Equal(t, "v1", read(t, dir, "a.txt"))
	assert.False(t, exists(dir, "b.txt"))

	log, err := r.Log()
	require.NoError(t, err)
	assert.Equal(t, first, log[0].ID)

	// reset leaves the newer commits in the store
	all, err := r.GlobalLog()
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestFind(t *testing.T) {
	r, dir := setupRepo(t)
	a := commitFile(t, r, dir, "a.txt", "1", "same")
	b := commitFile(t, r, dir, "a.txt", "2", "same")

	ids, err := r.Find("same")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, ids)

	_, err = r.Find("missing")
	assert.Equal(t, "Found no commit with that message.", err.Error())
}

func TestRemoveBranch(t *testing.T) {
	r, _ := setupRepo(t)
	require.NoError(t, r.Branch("dev"))

	assert.Equal(t, "A branch with that name already exists.", r.Branch("dev").Error())
	assert.Equal(t, "Cannot remove the current branch.", r.RemoveBranch("master").Error())
	require.NoError(t, r.RemoveBranch("dev"))
	assert.Equal(t, "A branch with that name does not exist.", r.RemoveBranch("dev").Error())
}

func TestMergeWithConflict(t *testing.T) {
	r, dir := setupRepo(t)
	commitFile(t, r, dir, "f.txt", "a\n", "base")
	require.NoError(t, r.Branch("other"))
	commitFile(t, r, dir, "f.txt", "b\n", "master edit")
	require.NoError(t, r.CheckoutBranch("other"))
	commitFile(t, r, dir, "f.txt", "c\n", "other edit")
	require.NoError(t, r.CheckoutBranch("master"))

	res, err := r.Merge("other")
	require.NoError(t, err)
	assert.Equal(t, merge.Merged, res.Outcome)
	assert.Equal(t, []string{"f.txt"}, res.Conflicts)
	assert.Equal(t, "<<<<<<< HEAD\nb\n=======\nc\n>>>>>>>\n", read(t, dir, "f.txt"))

	log, err := r.Log()
	require.NoError(t, err)
	assert.Equal(t, "Merged other into master.", log[0].Message)
	assert.True(t, strings.Contains(log[0].String(), "\nMerge: "))
}

func TestDiff(t *testing.T) {
	r, dir := setupRepo(t)
	commitFile(t, r, dir, "a.txt", "one\ntwo\n", "add a")
	commitFile(t, r, dir, "b.txt", "b\n", "add b")

	results, err := r.Diff()
	require.NoError(t, err)
	assert.Empty(t, results)

	write(t, dir, "a.txt", "one\n2\n")
	results, err = r.Diff()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.txt", results[0].Path)
	assert.Contains(t, results[0].Format(), "-two\n+2\n")

	results, err = r.Diff("b.txt")
	require.NoError(t, err)
	assert.Empty(t, results)
}
