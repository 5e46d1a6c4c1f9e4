// Package workdir reads and rewrites the user's working tree.
package workdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"
)

// MetaDir holds repository state and is never part of the working tree.
const MetaDir = ".twig"

// Tree is a working tree rooted at an afero filesystem. Paths are
// slash-separated and relative to the root.
type Tree struct {
	fs   afero.Fs
	root string
}

// NewTree wraps fsys as a tree with no on-disk root. Watch is unavailable.
func NewTree(fsys afero.Fs) *Tree {
	return &Tree{fs: fsys}
}

// OpenTree returns the tree of the OS directory root.
func OpenTree(root string) *Tree {
	return &Tree{
		fs:   afero.NewBasePathFs(afero.NewOsFs(), root),
		root: root,
	}
}

func (t *Tree) Root() string { return t.root }

func native(p string) string {
	return filepath.FromSlash(path.Clean("/" + p))
}

func (t *Tree) ReadFile(p string) ([]byte, error) {
	return afero.ReadFile(t.fs, native(p))
}

// Exists reports whether p is a regular file.
func (t *Tree) Exists(p string) (bool, error) {
	info, err := t.fs.Stat(native(p))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// WriteFile writes through a temp file in the same directory, then renames.
func (t *Tree) WriteFile(p string, data []byte) error {
	name := native(p)
	dir := filepath.Dir(name)
	if err := t.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", p, err)
	}

	tmp, err := afero.TempFile(t.fs, dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", p, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		t.fs.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		t.fs.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", p, err)
	}
	if err := t.fs.Rename(tmpName, name); err != nil {
		t.fs.Remove(tmpName)
		return fmt.Errorf("renaming into %s: %w", p, err)
	}
	return nil
}

// Remove deletes p. A missing file is not an error.
func (t *Tree) Remove(p string) error {
	err := t.fs.Remove(native(p))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", p, err)
	}
	return nil
}

// tmpPrefix marks in-flight writes from WriteFile.
const tmpPrefix = ".twig-tmp-"

func skip(name string) bool {
	return name == MetaDir || strings.HasPrefix(name, tmpPrefix)
}

// Entries lists every regular file in the tree, sorted, dotfiles included.
// The metadata directory and in-flight temp files are skipped.
func (t *Tree) Entries() ([]string, error) {
	var entries []string
	err := afero.Walk(t.fs, string(filepath.Separator), func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == string(filepath.Separator) {
			return nil
		}
		if skip(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			entries = append(entries, strings.TrimPrefix(filepath.ToSlash(p), "/"))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing working tree: %w", err)
	}
	sort.Strings(entries)
	return entries, nil
}

// Fingerprint is a fast non-cryptographic digest for change detection.
func Fingerprint(data []byte) uint64 {
	return xxh3.Hash(data)
}
