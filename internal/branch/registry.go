// Package branch keeps named commit pointers and the current-branch record.
package branch

import (
	"errors"
	"fmt"
	"sort"

	twigerrors "twig/internal/errors"
	"twig/internal/object"
	"twig/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

var headKey = []byte("HEAD")

// Branch is a named pointer to a commit. Tracked mirrors the head commit's
// tracked paths and is recomputed whenever Head moves.
type Branch struct {
	Name    string   `json:"name"`
	Head    string   `json:"head"`
	Tracked []string `json:"tracked"`
}

func (b *Branch) GetID() string { return b.Name }

type CommitSource interface {
	GetCommit(id string) (*object.Commit, error)
}

type Registry struct {
	db       *badger.DB
	branches *storage.BadgerStore
	commits  CommitSource
	logger   *zap.Logger
}

func NewRegistry(db *badger.DB, commits CommitSource, logger *zap.Logger) *Registry {
	return &Registry{
		db:       db,
		branches: storage.NewBadgerStore(db, "branch"),
		commits:  commits,
		logger:   logger,
	}
}

func (r *Registry) record(name, head string) (*Branch, error) {
	c, err := r.commits.GetCommit(head)
	if err != nil {
		return nil, fmt.Errorf("loading head of %s: %w", name, err)
	}
	return &Branch{Name: name, Head: head, Tracked: c.Tracked()}, nil
}

// Init creates the first branch at head and makes it current.
func (r *Registry) Init(name, head string) error {
	b, err := r.record(name, head)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := r.branches.PutTxn(txn, b); err != nil {
			return err
		}
		return txn.Set(headKey, []byte(name))
	})
}

func (r *Registry) Create(name, at string) error {
	b, err := r.record(name, at)
	if err != nil {
		return err
	}
	if err := r.branches.Create(b); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return twigerrors.AlreadyExists("A branch with that name already exists.")
		}
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	r.logger.Debug("created branch", zap.String("branch", name), zap.String("head", at))
	return nil
}

func (r *Registry) Delete(name string) error {
	current, err := r.CurrentName()
	if err != nil {
		return err
	}
	if name == current {
		return twigerrors.InvalidOperands("Cannot remove the current branch.")
	}
	if err := r.branches.Delete(name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return twigerrors.NotFound("A branch with that name does not exist.")
		}
		return fmt.Errorf("deleting branch %s: %w", name, err)
	}
	return nil
}

func (r *Registry) Get(name string) (*Branch, error) {
	var b Branch
	if err := r.branches.Get(name, &b); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, twigerrors.NotFound("No such branch exists.")
		}
		return nil, fmt.Errorf("reading branch %s: %w", name, err)
	}
	return &b, nil
}

// SetHead moves name to commit. It is the only way branch state changes.
func (r *Registry) SetHead(name, commit string) error {
	if _, err := r.Get(name); err != nil {
		return err
	}
	b, err := r.record(name, commit)
	if err != nil {
		return err
	}
	if err := r.branches.Put(b); err != nil {
		return fmt.Errorf("moving %s: %w", name, err)
	}
	r.logger.Info("moved branch head", zap.String("branch", name), zap.String("head", commit))
	return nil
}

func (r *Registry) SwitchCurrent(name string) error {
	if _, err := r.Get(name); err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(headKey, []byte(name))
	})
}

func (r *Registry) CurrentName() (string, error) {
	var name string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(headKey)
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		name = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", twigerrors.NotInitialized(twigerrors.MsgNotInitialized)
	}
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	return name, nil
}

func (r *Registry) Current() (*Branch, error) {
	name, err := r.CurrentName()
	if err != nil {
		return nil, err
	}
	return r.Get(name)
}

// List returns every branch sorted by name.
func (r *Registry) List() ([]*Branch, error) {
	var branches []*Branch
	if err := r.branches.List(&branches); err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}
