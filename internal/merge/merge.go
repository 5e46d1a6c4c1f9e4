// Package merge reconciles the current branch with another one.
package merge

import (
	"errors"
	"fmt"
	"time"

	"twig/internal/branch"
	twigerrors "twig/internal/errors"
	"twig/internal/graph"
	"twig/internal/index"
	"twig/internal/object"
	"twig/internal/workdir"

	"go.uber.org/zap"
)

type Outcome int

const (
	Merged Outcome = iota
	AlreadyMerged
	FastForwarded
)

const (
	MsgAlreadyMerged = "Given branch is an ancestor of the current branch."
	MsgFastForwarded = "Current branch fast-forwarded."
	MsgConflict      = "Encountered a merge conflict."
)

type Result struct {
	Outcome   Outcome
	Head      string   // current branch head after the merge
	Conflicts []string // paths written with conflict markers
}

// Engine merges using the repository's components. Now stamps merge commits.
type Engine struct {
	Store    *object.Store
	Graph    *graph.Graph
	Branches *branch.Registry
	Index    *index.Index
	Tree     *workdir.Tree
	Logger   *zap.Logger
	Now      func() time.Time
}

// Merge merges branch other into the current branch. Conflicts do not fail
// the merge; they are committed with markers and listed in the result.
func (e *Engine) Merge(other string) (*Result, error) {
	empty, err := e.Index.IsEmpty()
	if err != nil {
		return nil, err
	}
	if !empty {
		return nil, twigerrors.NothingToDo("You have uncommitted changes.")
	}

	current, err := e.Branches.Current()
	if err != nil {
		return nil, err
	}
	given, err := e.Branches.Get(other)
	if err != nil {
		if errors.Is(err, twigerrors.ErrNotFound) {
			return nil, twigerrors.NotFound("A branch with that name does not exist.")
		}
		return nil, err
	}
	if given.Name == current.Name {
		return nil, twigerrors.NothingToDo("Cannot merge a branch with itself.")
	}

	split, err := e.Graph.SplitPoint(current.Head, given.Head)
	if err != nil {
		return nil, fmt.Errorf("finding split point: %w", err)
	}
	log := e.Logger.With(zap.String("current", current.Name), zap.String("other", given.Name), zap.String("split", split))

	if split == given.Head {
		log.Debug("already merged")
		return &Result{Outcome: AlreadyMerged, Head: current.Head}, nil
	}

	curCommit, err := e.Store.GetCommit(current.Head)
	if err != nil {
		return nil, err
	}
	otherCommit, err := e.Store.GetCommit(given.Head)
	if err != nil {
		return nil, err
	}
	entries, err := e.Tree.Entries()
	if err != nil {
		return nil, err
	}

	if split == current.Head {
		if err := e.checkout(curCommit.Tracking, otherCommit.Tracking, entries); err != nil {
			return nil, err
		}
		if err := e.Branches.SetHead(current.Name, given.Head); err != nil {
			return nil, err
		}
		log.Info("fast-forwarded")
		return &Result{Outcome: FastForwarded, Head: given.Head}, nil
	}

	splitCommit, err := e.Store.GetCommit(split)
	if err != nil {
		return nil, err
	}

	plan, err := e.resolve(splitCommit.Tracking, curCommit.Tracking, otherCommit.Tracking, entries)
	if err != nil {
		return nil, err
	}
	if err := workdir.VerifyNoUntrackedConflict(curCommit.Tracking, plan.writes, entries); err != nil {
		return nil, err
	}
	if err := e.Tree.ApplyChanges(plan.writes, plan.deletes, e.Store); err != nil {
		return nil, fmt.Errorf("updating working tree: %w", err)
	}
	target, conflicts := plan.target, plan.conflicts

	msg := fmt.Sprintf("Merged %s into %s.", given.Name, current.Name)
	c, err := object.NewCommit(e.Now(), msg, target, current.Head, given.Head)
	if err != nil {
		return nil, err
	}
	if _, err := e.Store.PutCommit(c); err != nil {
		return nil, err
	}
	if err := e.Branches.SetHead(current.Name, c.ID); err != nil {
		return nil, err
	}

	log.Info("merged", zap.String("commit", c.ID), zap.Int("conflicts", len(conflicts)))
	return &Result{Outcome: Merged, Head: c.ID, Conflicts: conflicts}, nil
}

// mergePlan is the merged tracking map plus the working-tree edits that
// produce it. Kept paths appear in neither writes nor deletes.
type mergePlan struct {
	target    map[string]string
	writes    map[string]string
	deletes   []string
	conflicts []string
}

// resolve builds the merge plan. Conflict files are stored as blobs so the
// merged commit tracks them like any other file.
func (e *Engine) resolve(split, cur, other map[string]string, entries []string) (*mergePlan, error) {
	plan := &mergePlan{
		target: make(map[string]string, len(cur)),
		writes: make(map[string]string),
	}
	for p, id := range cur {
		plan.target[p] = id
	}

	for _, d := range Classify(split, cur, other, entries) {
		switch d.Action {
		case TakeOther:
			plan.target[d.Path] = other[d.Path]
			plan.writes[d.Path] = other[d.Path]
		case Delete:
			delete(plan.target, d.Path)
			plan.deletes = append(plan.deletes, d.Path)
		case Conflict:
			curData, err := e.side(cur[d.Path])
			if err != nil {
				return nil, err
			}
			otherData, err := e.side(other[d.Path])
			if err != nil {
				return nil, err
			}
			id, err := e.Store.PutBlob(ConflictContent(curData, otherData))
			if err != nil {
				return nil, err
			}
			plan.target[d.Path] = id
			plan.writes[d.Path] = id
			plan.conflicts = append(plan.conflicts, d.Path)
		}
	}
	return plan, nil
}

func (e *Engine) side(id string) ([]byte, error) {
	if id == "" {
		return nil, nil
	}
	return e.Store.GetBlob(id)
}

func (e *Engine) checkout(current, target map[string]string, entries []string) error {
	if err := workdir.VerifyNoUntrackedConflict(current, target, entries); err != nil {
		return err
	}
	if err := e.Tree.Apply(target, current, e.Store); err != nil {
		return fmt.Errorf("updating working tree: %w", err)
	}
	return nil
}
