package repo

import (
	"fmt"

	"twig/internal/branch"
	"twig/internal/diff"
	twigerrors "twig/internal/errors"
	"twig/internal/graph"
	"twig/internal/merge"
	"twig/internal/object"
	"twig/internal/validation"
	"twig/internal/workdir"

	"go.uber.org/zap"
)

func (r *Repo) head() (*branch.Branch, *object.Commit, error) {
	b, err := r.Branches.Current()
	if err != nil {
		return nil, nil, err
	}
	c, err := r.Objects.GetCommit(b.Head)
	if err != nil {
		return nil, nil, err
	}
	return b, c, nil
}

func (r *Repo) Add(file string) error {
	p, err := validation.Path(file)
	if err != nil {
		return err
	}
	_, c, err := r.head()
	if err != nil {
		return err
	}
	return r.Index.Add(p, c.Tracking)
}

func (r *Repo) Remove(file string) error {
	p, err := validation.Path(file)
	if err != nil {
		return err
	}
	_, c, err := r.head()
	if err != nil {
		return err
	}
	return r.Index.Remove(p, c.Tracking, r.Objects)
}

// Commit records the staged changes on top of the current head and returns
// the new commit id.
func (r *Repo) Commit(message string) (string, error) {
	if err := validation.CommitMessage(message); err != nil {
		return "", err
	}
	empty, err := r.Index.IsEmpty()
	if err != nil {
		return "", err
	}
	if empty {
		return "", twigerrors.NothingToDo("No changes added to the commit.")
	}

	b, parent, err := r.head()
	if err != nil {
		return "", err
	}

	additions, removals, err := r.Index.Drain(r.Objects)
	if err != nil {
		return "", err
	}

	tracking := make(map[string]string, len(parent.Tracking)+len(additions))
	for p, id := range parent.Tracking {
		tracking[p] = id
	}
	for p, id := range additions {
		tracking[p] = id
	}
	for _, p := range removals {
		delete(tracking, p)
	}

	c, err := object.NewCommit(r.now(), message, tracking, parent.ID)
	if err != nil {
		return "", err
	}
	if _, err := r.Objects.PutCommit(c); err != nil {
		return "", err
	}
	if err := r.Branches.SetHead(b.Name, c.ID); err != nil {
		return "", err
	}
	return c.ID, nil
}

// Log returns the current branch's first-parent history, newest first.
func (r *Repo) Log() ([]graph.LogEntry, error) {
	b, err := r.Branches.Current()
	if err != nil {
		return nil, err
	}
	return r.Graph.History(b.Head)
}

func (r *Repo) GlobalLog() ([]graph.LogEntry, error) {
	return r.Graph.All()
}

func (r *Repo) Find(message string) ([]string, error) {
	return r.Graph.Find(message)
}

// ResolveCommit loads the commit whose id starts with id.
func (r *Repo) ResolveCommit(id string) (*object.Commit, error) {
	full, err := r.Objects.ResolvePrefix(id)
	if err != nil {
		return nil, err
	}
	return r.Objects.GetCommit(full)
}

// switchTo replaces the working tree with target's snapshot after checking
// that no untracked file would be overwritten, then empties the index.
func (r *Repo) switchTo(current, target *object.Commit) error {
	entries, err := r.Tree.Entries()
	if err != nil {
		return err
	}
	if err := workdir.VerifyNoUntrackedConflict(current.Tracking, target.Tracking, entries); err != nil {
		return err
	}
	if err := r.Tree.Apply(target.Tracking, current.Tracking, r.Objects); err != nil {
		return fmt.Errorf("updating working tree: %w", err)
	}
	return r.Index.Clear()
}

func (r *Repo) CheckoutBranch(name string) error {
	target, err := r.Branches.Get(name)
	if err != nil {
		return err
	}
	cur, curCommit, err := r.head()
	if err != nil {
		return err
	}
	if cur.Name == target.Name {
		return twigerrors.NothingToDo("No need to checkout the current branch.")
	}

	targetCommit, err := r.Objects.GetCommit(target.Head)
	if err != nil {
		return err
	}
	if err := r.switchTo(curCommit, targetCommit); err != nil {
		return err
	}
	if err := r.Branches.SwitchCurrent(name); err != nil {
		return err
	}
	r.Logger.Info("switched branch", zap.String("from", cur.Name), zap.String("to", name))
	return nil
}

// CheckoutFile restores file from the current head.
func (r *Repo) CheckoutFile(file string) error {
	_, c, err := r.head()
	if err != nil {
		return err
	}
	return r.restoreFrom(c, file)
}

// CheckoutCommitFile restores file from the commit whose id starts with id.
func (r *Repo) CheckoutCommitFile(id, file string) error {
	c, err := r.ResolveCommit(id)
	if err != nil {
		return err
	}
	return r.restoreFrom(c, file)
}

func (r *Repo) restoreFrom(c *object.Commit, file string) error {
	p, err := validation.Path(file)
	if err != nil {
		return err
	}
	blobID, ok := c.Tracking[p]
	if !ok {
		return twigerrors.NotFound("File does not exist in that commit.")
	}
	data, err := r.Objects.GetBlob(blobID)
	if err != nil {
		return err
	}
	return r.Tree.WriteFile(p, data)
}

// Branch creates name at the current head without switching to it.
func (r *Repo) Branch(name string) error {
	if err := validation.BranchName(name); err != nil {
		return err
	}
	b, err := r.Branches.Current()
	if err != nil {
		return err
	}
	return r.Branches.Create(name, b.Head)
}

func (r *Repo) RemoveBranch(name string) error {
	return r.Branches.Delete(name)
}

// Reset checks out the commit whose id starts with id and moves the current
// branch to it. Commits left unreachable stay in the store.
func (r *Repo) Reset(id string) error {
	target, err := r.ResolveCommit(id)
	if err != nil {
		return err
	}
	cur, curCommit, err := r.head()
	if err != nil {
		return err
	}
	if err := r.switchTo(curCommit, target); err != nil {
		return err
	}
	return r.Branches.SetHead(cur.Name, target.ID)
}

func (r *Repo) Merge(other string) (*merge.Result, error) {
	return r.merger().Merge(other)
}

// Diff compares the working tree against the current head. With no paths
// every tracked file is compared; unchanged files are omitted.
func (r *Repo) Diff(files ...string) ([]*diff.DiffResult, error) {
	_, c, err := r.head()
	if err != nil {
		return nil, err
	}

	paths := c.Tracked()
	if len(files) > 0 {
		paths = paths[:0:0]
		for _, f := range files {
			p, err := validation.Path(f)
			if err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
	}

	engine := diff.NewEngine(3)
	var results []*diff.DiffResult
	for _, p := range paths {
		var old []byte
		if id, ok := c.Tracking[p]; ok {
			if old, err = r.Objects.GetBlob(id); err != nil {
				return nil, err
			}
		}

		var cur []byte
		exists, err := r.Tree.Exists(p)
		if err != nil {
			return nil, err
		}
		if exists {
			if cur, err = r.Tree.ReadFile(p); err != nil {
				return nil, err
			}
		}

		res := engine.Diff(old, cur)
		if res.Stats.Changes == 0 {
			continue
		}
		res.Path = p
		results = append(results, res)
	}
	return results, nil
}

func (r *Repo) ListBranches() ([]*branch.Branch, error) {
	return r.Branches.List()
}
