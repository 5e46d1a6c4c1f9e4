package workdir

import (
	"fmt"
	"sort"

	twigerrors "twig/internal/errors"

	"github.com/hashicorp/go-multierror"
)

type BlobReader interface {
	GetBlob(id string) ([]byte, error)
}

// VerifyNoUntrackedConflict fails if any entry is untracked in current and
// would be written by target.
func VerifyNoUntrackedConflict(current, target map[string]string, entries []string) error {
	for _, p := range entries {
		if _, tracked := current[p]; tracked {
			continue
		}
		if _, incoming := target[p]; incoming {
			return twigerrors.UntrackedOverwrite(twigerrors.MsgUntrackedInTheWay)
		}
	}
	return nil
}

// Apply makes the tree match target: every target file is written and every
// file tracked by current but absent from target is deleted.
func (t *Tree) Apply(target, current map[string]string, blobs BlobReader) error {
	var stale []string
	for p := range current {
		if _, keep := target[p]; !keep {
			stale = append(stale, p)
		}
	}
	return t.ApplyChanges(target, stale, blobs)
}

// ApplyChanges writes each path in writes with its blob and deletes each
// path in deletes; nothing else in the tree is touched. All blobs are
// loaded before the first write, so a missing blob leaves the tree as it
// was. Write and delete failures are collected and returned together.
func (t *Tree) ApplyChanges(writes map[string]string, deletes []string, blobs BlobReader) error {
	paths := make([]string, 0, len(writes))
	for p := range writes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	contents := make(map[string][]byte, len(paths))
	for _, p := range paths {
		data, err := blobs.GetBlob(writes[p])
		if err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
		contents[p] = data
	}

	var result *multierror.Error
	for _, p := range paths {
		if err := t.WriteFile(p, contents[p]); err != nil {
			result = multierror.Append(result, err)
		}
	}

	deletes = append([]string(nil), deletes...)
	sort.Strings(deletes)
	for _, p := range deletes {
		if err := t.Remove(p); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
