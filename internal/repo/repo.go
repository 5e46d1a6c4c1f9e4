// Package repo is the repository handle: it opens every store under .twig
// and runs the user-level operations against them.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"twig/internal/branch"
	"twig/internal/config"
	twigerrors "twig/internal/errors"
	"twig/internal/graph"
	"twig/internal/index"
	"twig/internal/logging"
	"twig/internal/merge"
	"twig/internal/object"
	"twig/internal/safe"
	"twig/internal/workdir"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

type Repo struct {
	Root     string
	Config   *config.Config
	Logger   *logging.Logger
	DB       *badger.DB
	Safe     *safe.Safe
	Objects  *object.Store
	Graph    *graph.Graph
	Branches *branch.Registry
	Index    *index.Index
	Tree     *workdir.Tree

	lock *flock.Flock
	now  func() time.Time
}

type Options struct {
	// Logger overrides the logger built from the config's log level.
	Logger *logging.Logger
	// Now stamps new commits; defaults to time.Now.
	Now func() time.Time
}

func metaDir(root string) string    { return filepath.Join(root, workdir.MetaDir) }
func dbDir(root string) string      { return filepath.Join(metaDir(root), "db") }
func objectsDir(root string) string { return filepath.Join(metaDir(root), "objects") }
func lockPath(root string) string   { return filepath.Join(metaDir(root), "lock") }

// Init creates a repository in root holding the initial commit on the
// configured default branch, and returns it open.
func Init(root string, opts Options) (*Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	if _, err := os.Stat(metaDir(abs)); err == nil {
		return nil, twigerrors.AlreadyInitialized("A twig repository already exists in the current directory.")
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking %s: %w", metaDir(abs), err)
	}

	for _, dir := range []string{metaDir(abs), dbDir(abs), objectsDir(abs)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := config.WriteDefaults(metaDir(abs)); err != nil {
		return nil, err
	}

	r, err := Open(abs, opts)
	if err != nil {
		return nil, err
	}

	initial := object.RootCommit()
	if _, err := r.Objects.PutCommit(initial); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.Branches.Init(r.Config.DefaultBranch, initial.ID); err != nil {
		r.Close()
		return nil, fmt.Errorf("creating %s: %w", r.Config.DefaultBranch, err)
	}

	r.Logger.Info("initialized repository", zap.String("root", abs), zap.String("branch", r.Config.DefaultBranch))
	return r, nil
}

// Open opens the repository in root, taking an exclusive lock on it until
// Close.
func Open(root string, opts Options) (*Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	if info, err := os.Stat(metaDir(abs)); err != nil || !info.IsDir() {
		return nil, twigerrors.NotInitialized(twigerrors.MsgNotInitialized)
	}

	lock := flock.New(lockPath(abs))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking repository: %w", err)
	}
	if !locked {
		return nil, twigerrors.Locked("Another twig process is using this repository.")
	}

	r, err := open(abs, lock, opts)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	return r, nil
}

func open(root string, lock *flock.Flock, opts Options) (*Repo, error) {
	cfg, err := config.Load(metaDir(root))
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		if logger, err = logging.NewLogger(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
	}

	dbOpts := badger.DefaultOptions(dbDir(root)).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	blobs, err := safe.New(db, safe.Options{
		Root:      objectsDir(root),
		CacheSize: cfg.Storage.CacheSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing object store: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger = logger.ForRepo(root)
	objects := object.NewStore(db, blobs, logger.Named("object"))
	tree := workdir.OpenTree(root)
	return &Repo{
		Root:     root,
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Safe:     blobs,
		Objects:  objects,
		Graph:    graph.New(objects),
		Branches: branch.NewRegistry(db, objects, logger.Named("branch")),
		Index:    index.New(db, tree, logger.Named("index")),
		Tree:     tree,
		lock:     lock,
		now:      now,
	}, nil
}

func (r *Repo) merger() *merge.Engine {
	return &merge.Engine{
		Store:    r.Objects,
		Graph:    r.Graph,
		Branches: r.Branches,
		Index:    r.Index,
		Tree:     r.Tree,
		Logger:   r.Logger.Named("merge"),
		Now:      r.now,
	}
}

// Close releases the database and the repository lock.
func (r *Repo) Close() error {
	var result *multierror.Error

	r.Safe.Close()
	if err := r.DB.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing database: %w", err))
	}
	if err := r.lock.Unlock(); err != nil {
		result = multierror.Append(result, fmt.Errorf("releasing lock: %w", err))
	}
	_ = r.Logger.Sync()

	return result.ErrorOrNil()
}
