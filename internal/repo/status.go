package repo

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"twig/internal/workdir"
)

type ChangeKind string

const (
	Modified ChangeKind = "modified"
	Deleted  ChangeKind = "deleted"
)

type Change struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
}

type Status struct {
	Current   string   `json:"current"`
	Branches  []string `json:"branches"`
	Staged    []string `json:"staged"`
	Removed   []string `json:"removed"`
	Modified  []Change `json:"modified"`
	Untracked []string `json:"untracked"`
}

// Status compares the working tree with the index and the current head.
func (r *Repo) Status() (*Status, error) {
	cur, head, err := r.head()
	if err != nil {
		return nil, err
	}

	branches, err := r.Branches.List()
	if err != nil {
		return nil, err
	}
	st := &Status{Current: cur.Name}
	for _, b := range branches {
		st.Branches = append(st.Branches, b.Name)
	}

	if st.Staged, err = r.Index.Staged(); err != nil {
		return nil, err
	}
	if st.Removed, err = r.Index.Removed(); err != nil {
		return nil, err
	}
	entries, err := r.Tree.Entries()
	if err != nil {
		return nil, err
	}

	onDisk := make(map[string]bool, len(entries))
	for _, p := range entries {
		onDisk[p] = true
	}
	staged := toSet(st.Staged)
	removed := toSet(st.Removed)

	for _, p := range st.Staged {
		if !onDisk[p] {
			st.Modified = append(st.Modified, Change{Path: p, Kind: Deleted})
			continue
		}
		want, _, err := r.Index.StagedContent(p)
		if err != nil {
			return nil, err
		}
		got, err := r.Tree.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(want, got) {
			st.Modified = append(st.Modified, Change{Path: p, Kind: Modified})
		}
	}

	for p, id := range head.Tracking {
		if staged[p] || removed[p] {
			continue
		}
		if !onDisk[p] {
			st.Modified = append(st.Modified, Change{Path: p, Kind: Deleted})
			continue
		}
		same, err := r.matchesBlob(p, id)
		if err != nil {
			return nil, err
		}
		if !same {
			st.Modified = append(st.Modified, Change{Path: p, Kind: Modified})
		}
	}
	sort.Slice(st.Modified, func(i, j int) bool { return st.Modified[i].Path < st.Modified[j].Path })

	for _, p := range entries {
		_, tracked := head.Tracking[p]
		if (!tracked || removed[p]) && !staged[p] {
			st.Untracked = append(st.Untracked, p)
		}
	}
	return st, nil
}

// matchesBlob compares the working copy of p with blob id using the size and
// fingerprint recorded when the blob was stored.
func (r *Repo) matchesBlob(p, id string) (bool, error) {
	meta, err := r.Objects.BlobMeta(id)
	if err != nil {
		return false, err
	}
	data, err := r.Tree.ReadFile(p)
	if err != nil {
		return false, err
	}
	return int64(len(data)) == meta.Size && workdir.Fingerprint(data) == meta.Fingerprint, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// String renders the status as five titled sections.
func (s *Status) String() string {
	var b strings.Builder

	b.WriteString("=== Branches ===\n")
	for _, name := range s.Branches {
		if name == s.Current {
			b.WriteString("*")
		}
		b.WriteString(name + "\n")
	}

	section := func(title string, lines []string) {
		fmt.Fprintf(&b, "\n=== %s ===\n", title)
		for _, line := range lines {
			b.WriteString(line + "\n")
		}
	}
	section("Staged Files", s.Staged)
	section("Removed Files", s.Removed)

	var mods []string
	for _, c := range s.Modified {
		mods = append(mods, fmt.Sprintf("%s (%s)", c.Path, c.Kind))
	}
	section("Modifications Not Staged For Commit", mods)
	section("Untracked Files", s.Untracked)
	b.WriteString("\n")
	return b.String()
}
