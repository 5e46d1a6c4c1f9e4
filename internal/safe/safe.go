// internal/safe/safe.go
package safe

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"twig/internal/storage"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"
)

var (
	ErrContentNotFound = errors.New("content not found")
	ErrInvalidHash     = errors.New("invalid content hash")
	ErrHashMismatch    = errors.New("content hash mismatch")
)

// ContentMeta stores metadata about stored content
type ContentMeta struct {
	Hash        string    `json:"hash"`
	Size        int64     `json:"size"`
	Fingerprint uint64    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m *ContentMeta) GetID() string { return m.Hash }

// Safe is an append-only, deduplicated content store. Bytes live in files
// under Root; metadata lives in badger under "blob:<hash>".
type Safe struct {
	fs    afero.Fs
	root  string
	meta  *storage.BadgerStore
	cache *lru.Cache[string, []byte]
	mu    sync.Mutex
}

// Options configures Safe behavior
type Options struct {
	Root      string   // Root directory path
	Fs        afero.Fs // defaults to the OS filesystem
	CacheSize int      // Number of items to cache
}

// New creates a new Safe instance
func New(db *badger.DB, opts Options) (*Safe, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}

	if err := opts.Fs.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return &Safe{
		fs:    opts.Fs,
		root:  opts.Root,
		meta:  storage.NewBadgerStore(db, "blob"),
		cache: cache,
	}, nil
}

// Store saves content and returns its hash. Storing the same bytes twice
// writes nothing the second time.
func (s *Safe) Store(content []byte) (string, error) {
	if content == nil {
		content = []byte{}
	}

	hash := HashContent(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.meta.Has(hash)
	if err != nil {
		return "", fmt.Errorf("checking existence: %w", err)
	}
	if exists {
		return hash, nil
	}

	contentPath := s.contentPath(hash)
	if err := s.writeFile(contentPath, content); err != nil {
		return "", err
	}

	meta := &ContentMeta{
		Hash:        hash,
		Size:        int64(len(content)),
		Fingerprint: xxh3.Hash(content),
		CreatedAt:   time.Now(),
	}
	if err := s.meta.Put(meta); err != nil {
		s.fs.Remove(contentPath)
		return "", fmt.Errorf("storing metadata: %w", err)
	}

	s.cache.Add(hash, bytes.Clone(content))
	return hash, nil
}

// Get retrieves content by hash, verifying it against the hash.
func (s *Safe) Get(hash string) ([]byte, error) {
	if !isValidHash(hash) {
		return nil, ErrInvalidHash
	}

	// the cache owns its slices; callers get copies
	if content, ok := s.cache.Get(hash); ok {
		return bytes.Clone(content), nil
	}

	if _, err := s.Meta(hash); err != nil {
		return nil, err
	}

	content, err := afero.ReadFile(s.fs, s.contentPath(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("reading content: %w", err)
	}

	if HashContent(content) != hash {
		return nil, ErrHashMismatch
	}

	s.cache.Add(hash, bytes.Clone(content))
	return content, nil
}

// Meta returns the stored metadata for hash.
func (s *Safe) Meta(hash string) (*ContentMeta, error) {
	if !isValidHash(hash) {
		return nil, ErrInvalidHash
	}

	var meta ContentMeta
	if err := s.meta.Get(hash, &meta); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("getting metadata: %w", err)
	}
	return &meta, nil
}

// Exists checks if content exists
func (s *Safe) Exists(hash string) (bool, error) {
	if !isValidHash(hash) {
		return false, ErrInvalidHash
	}
	if s.cache.Contains(hash) {
		return true, nil
	}
	return s.meta.Has(hash)
}

// StoreBatch stores every item and returns the hashes in input order.
// Items written before a failure stay in the store; the store is append-only
// and unreferenced content is harmless.
func (s *Safe) StoreBatch(contents [][]byte) ([]string, error) {
	hashes := make([]string, len(contents))
	for i, content := range contents {
		hash, err := s.Store(content)
		if err != nil {
			return nil, fmt.Errorf("storing content %d: %w", i, err)
		}
		hashes[i] = hash
	}
	return hashes, nil
}

// Close drops cached content.
func (s *Safe) Close() {
	s.cache.Purge()
}

// HashContent returns the hex sha256 of content.
func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// writeFile writes data to a temp file beside path and renames it into place.
func (s *Safe) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating content directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("writing content file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("closing content file: %w", err)
	}

	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("renaming content file: %w", err)
	}
	return nil
}

func (s *Safe) contentPath(hash string) string {
	return filepath.Join(s.root, hash[:2], hash[2:])
}

func isValidHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
