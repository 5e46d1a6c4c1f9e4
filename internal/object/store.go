// Package object is the content-addressed store for blobs and commits.
package object

import (
	"errors"
	"fmt"
	"sort"

	twigerrors "twig/internal/errors"
	"twig/internal/safe"
	"twig/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Store keeps blob bytes in a Safe and commit records in badger under "commit:".
type Store struct {
	blobs   *safe.Safe
	commits *storage.BadgerStore
	logger  *zap.Logger
}

func NewStore(db *badger.DB, blobs *safe.Safe, logger *zap.Logger) *Store {
	return &Store{
		blobs:   blobs,
		commits: storage.NewBadgerStore(db, "commit"),
		logger:  logger,
	}
}

func (s *Store) PutBlob(content []byte) (string, error) {
	id, err := s.blobs.Store(content)
	if err != nil {
		return "", fmt.Errorf("storing blob: %w", err)
	}
	return id, nil
}

// PutBlobs stores every item, returning ids in input order.
func (s *Store) PutBlobs(contents [][]byte) ([]string, error) {
	ids, err := s.blobs.StoreBatch(contents)
	if err != nil {
		return nil, fmt.Errorf("storing blobs: %w", err)
	}
	return ids, nil
}

func (s *Store) GetBlob(id string) ([]byte, error) {
	content, err := s.blobs.Get(id)
	if err != nil {
		if errors.Is(err, safe.ErrContentNotFound) || errors.Is(err, safe.ErrInvalidHash) {
			return nil, fmt.Errorf("blob %s: %w", id, twigerrors.NotFound("File does not exist."))
		}
		return nil, fmt.Errorf("reading blob %s: %w", id, err)
	}
	return content, nil
}

// BlobMeta exposes size and fingerprint so callers can compare files
// without loading the blob.
func (s *Store) BlobMeta(id string) (*safe.ContentMeta, error) {
	meta, err := s.blobs.Meta(id)
	if err != nil {
		if errors.Is(err, safe.ErrContentNotFound) || errors.Is(err, safe.ErrInvalidHash) {
			return nil, fmt.Errorf("blob %s: %w", id, twigerrors.NotFound("File does not exist."))
		}
		return nil, err
	}
	return meta, nil
}

// PutCommit stores c under its derived id. Re-storing an identical commit
// is a no-op.
func (s *Store) PutCommit(c *Commit) (string, error) {
	if c.ID != c.computeID() {
		return "", fmt.Errorf("commit id %s does not match its content", c.ID)
	}
	if err := s.commits.Put(c); err != nil {
		return "", fmt.Errorf("storing commit: %w", err)
	}
	s.logger.Debug("stored commit", zap.String("id", c.ID), zap.Stringer("kind", c.Kind()))
	return c.ID, nil
}

func (s *Store) GetCommit(id string) (*Commit, error) {
	var c Commit
	if err := s.commits.Get(id, &c); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, twigerrors.NotFound(twigerrors.MsgNoSuchCommit)
		}
		return nil, fmt.Errorf("reading commit %s: %w", id, err)
	}
	if c.Tracking == nil {
		c.Tracking = map[string]string{}
	}
	return &c, nil
}

func (s *Store) HasCommit(id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return s.commits.Has(id)
}

// ResolvePrefix expands an abbreviated commit id. It fails with AmbiguousID
// when more than one stored id shares the prefix.
func (s *Store) ResolvePrefix(short string) (string, error) {
	if short == "" {
		return "", twigerrors.InvalidOperands("Incorrect operands.")
	}

	ids, err := s.commits.IDs(short)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", short, err)
	}

	switch len(ids) {
	case 0:
		return "", twigerrors.NotFound(twigerrors.MsgNoSuchCommit)
	case 1:
		return ids[0], nil
	default:
		s.logger.Debug("ambiguous commit prefix", zap.String("prefix", short), zap.Int("matches", len(ids)))
		return "", twigerrors.AmbiguousID(fmt.Sprintf("Commit id %s is ambiguous.", short))
	}
}

// Commits returns every stored commit sorted by id.
func (s *Store) Commits() ([]*Commit, error) {
	var commits []*Commit
	if err := s.commits.List(&commits); err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	sort.Slice(commits, func(i, j int) bool { return commits[i].ID < commits[j].ID })
	return commits, nil
}
