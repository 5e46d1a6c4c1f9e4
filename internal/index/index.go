// Package index is the staging area between the working tree and the next
// commit.
package index

import (
	"errors"
	"fmt"
	"sort"

	twigerrors "twig/internal/errors"
	"twig/internal/safe"
	"twig/internal/storage"
	"twig/internal/workdir"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

type entry struct {
	Path string `json:"path"`
	Data []byte `json:"data,omitempty"`
}

func (e *entry) GetID() string { return e.Path }

type BlobReader interface {
	GetBlob(id string) ([]byte, error)
}

type BlobWriter interface {
	PutBlobs(contents [][]byte) ([]string, error)
}

// Index persists pending additions, removal markers and the bytes of
// removed files so a later add can restore them.
type Index struct {
	db         *badger.DB
	additions  *storage.BadgerStore
	removals   *storage.BadgerStore
	restorable *storage.BadgerStore
	tree       *workdir.Tree
	logger     *zap.Logger
}

func New(db *badger.DB, tree *workdir.Tree, logger *zap.Logger) *Index {
	return &Index{
		db:         db,
		additions:  storage.NewBadgerStore(db, "stage/add"),
		removals:   storage.NewBadgerStore(db, "stage/rm"),
		restorable: storage.NewBadgerStore(db, "stage/restore"),
		tree:       tree,
		logger:     logger,
	}
}

// Add stages the working-tree content of p. A file marked for removal is
// first restored from its cached bytes. Content identical to tracking[p]
// clears any pending addition instead.
func (ix *Index) Add(p string, tracking map[string]string) error {
	marked, err := ix.removals.Has(p)
	if err != nil {
		return fmt.Errorf("checking removal of %s: %w", p, err)
	}
	if marked {
		if err := ix.restore(p); err != nil {
			return err
		}
	}

	exists, err := ix.tree.Exists(p)
	if err != nil {
		return fmt.Errorf("checking %s: %w", p, err)
	}
	if !exists {
		return twigerrors.NotFound("File does not exist.")
	}

	data, err := ix.tree.ReadFile(p)
	if err != nil {
		return fmt.Errorf("reading %s: %w", p, err)
	}

	if id, ok := tracking[p]; ok && id == safe.HashContent(data) {
		if err := ix.additions.Delete(p); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("unstaging %s: %w", p, err)
		}
		ix.logger.Debug("content matches head, nothing staged", zap.String("path", p))
		return nil
	}

	if err := ix.additions.Put(&entry{Path: p, Data: data}); err != nil {
		return fmt.Errorf("staging %s: %w", p, err)
	}
	ix.logger.Debug("staged file", zap.String("path", p), zap.Int("size", len(data)))
	return nil
}

func (ix *Index) restore(p string) error {
	var cached entry
	err := ix.restorable.Get(p, &cached)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("reading cached %s: %w", p, err)
	default:
		if err := ix.tree.WriteFile(p, cached.Data); err != nil {
			return err
		}
	}

	return ix.db.Update(func(txn *badger.Txn) error {
		if err := ix.removals.DeleteTxn(txn, p); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err := ix.restorable.DeleteTxn(txn, p); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return nil
	})
}

// Remove unstages p and, if tracking holds it, caches its tracked bytes,
// deletes it from the working tree and marks it for removal.
func (ix *Index) Remove(p string, tracking map[string]string, blobs BlobReader) error {
	staged, err := ix.additions.Has(p)
	if err != nil {
		return fmt.Errorf("checking %s: %w", p, err)
	}
	id, tracked := tracking[p]
	if !staged && !tracked {
		return twigerrors.NothingToDo("No reason to remove the file.")
	}

	if staged {
		if err := ix.additions.Delete(p); err != nil {
			return fmt.Errorf("unstaging %s: %w", p, err)
		}
	}
	if !tracked {
		return nil
	}

	data, err := blobs.GetBlob(id)
	if err != nil {
		return fmt.Errorf("caching %s: %w", p, err)
	}
	err = ix.db.Update(func(txn *badger.Txn) error {
		if err := ix.restorable.PutTxn(txn, &entry{Path: p, Data: data}); err != nil {
			return err
		}
		return ix.removals.PutTxn(txn, &entry{Path: p})
	})
	if err != nil {
		return fmt.Errorf("marking %s for removal: %w", p, err)
	}

	if err := ix.tree.Remove(p); err != nil {
		return err
	}
	ix.logger.Debug("marked for removal", zap.String("path", p))
	return nil
}

// Drain writes every staged addition as a blob and then clears the index in
// a single transaction. If any blob fails the index is left as it was.
func (ix *Index) Drain(blobs BlobWriter) (map[string]string, []string, error) {
	var staged []entry
	if err := ix.additions.List(&staged); err != nil {
		return nil, nil, err
	}
	removed, err := ix.Removed()
	if err != nil {
		return nil, nil, err
	}

	contents := make([][]byte, len(staged))
	for i, e := range staged {
		contents[i] = e.Data
	}
	ids, err := blobs.PutBlobs(contents)
	if err != nil {
		return nil, nil, fmt.Errorf("writing staged blobs: %w", err)
	}

	additions := make(map[string]string, len(staged))
	for i, e := range staged {
		additions[e.Path] = ids[i]
	}

	if err := ix.Clear(); err != nil {
		return nil, nil, err
	}
	return additions, removed, nil
}

// Clear drops every pending addition, removal and cached copy at once.
func (ix *Index) Clear() error {
	err := ix.db.Update(func(txn *badger.Txn) error {
		for _, s := range []*storage.BadgerStore{ix.additions, ix.removals, ix.restorable} {
			if err := s.ClearTxn(txn); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	return nil
}

func (ix *Index) IsEmpty() (bool, error) {
	staged, err := ix.additions.IDs("")
	if err != nil {
		return false, err
	}
	removed, err := ix.removals.IDs("")
	if err != nil {
		return false, err
	}
	return len(staged) == 0 && len(removed) == 0, nil
}

// Staged returns the paths with pending additions, sorted.
func (ix *Index) Staged() ([]string, error) {
	paths, err := ix.additions.IDs("")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// StagedContent returns the staged bytes of p, or false if p is not staged.
func (ix *Index) StagedContent(p string) ([]byte, bool, error) {
	var e entry
	err := ix.additions.Get(p, &e)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Data, true, nil
}

// Removed returns the paths marked for removal, sorted.
func (ix *Index) Removed() ([]string, error) {
	paths, err := ix.removals.IDs("")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
