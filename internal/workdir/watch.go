package workdir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var ErrNoRoot = errors.New("tree has no directory on disk")

// Watch calls fn with the tree-relative path of every change until ctx is
// done. New directories are watched as they appear; the metadata directory
// and temp files are ignored.
func (t *Tree) Watch(ctx context.Context, logger *zap.Logger, fn func(path string)) error {
	if t.root == "" {
		return ErrNoRoot
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := t.addDirs(watcher, t.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(t.root, event.Name)
			if err != nil || t.ignored(rel) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := t.addDirs(watcher, event.Name); err != nil {
						logger.Warn("watching new directory", zap.String("path", rel), zap.Error(err))
					}
				}
			}
			fn(filepath.ToSlash(rel))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (t *Tree) ignored(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if skip(part) {
			return true
		}
	}
	return false
}

func (t *Tree) addDirs(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != t.root && skip(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}
