// Package graph walks commit ancestry. It never writes.
package graph

import (
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"

	twigerrors "twig/internal/errors"
	"twig/internal/object"
)

// DateLayout is how log entries render commit timestamps.
const DateLayout = "Mon Jan 2 15:04:05 2006 -0700"

type Source interface {
	GetCommit(id string) (*object.Commit, error)
	Commits() ([]*object.Commit, error)
}

type Graph struct {
	src Source
}

func New(src Source) *Graph {
	return &Graph{src: src}
}

// Ancestors yields id and every commit reachable from it, breadth-first over
// all parents, each exactly once. Every range re-reads the store.
func (g *Graph) Ancestors(id string) iter.Seq2[*object.Commit, error] {
	return func(yield func(*object.Commit, error) bool) {
		visited := map[string]bool{}
		queue := []string{id}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if visited[cur] {
				continue
			}
			visited[cur] = true

			c, err := g.src.GetCommit(cur)
			if err != nil {
				yield(nil, fmt.Errorf("walking ancestors of %s: %w", id, err))
				return
			}
			if !yield(c, nil) {
				return
			}
			queue = append(queue, c.Parents...)
		}
	}
}

// FirstParent yields id and its first-parent chain; the last element is the
// root commit.
func (g *Graph) FirstParent(id string) iter.Seq2[*object.Commit, error] {
	return func(yield func(*object.Commit, error) bool) {
		for cur := id; cur != ""; {
			c, err := g.src.GetCommit(cur)
			if err != nil {
				yield(nil, fmt.Errorf("walking history of %s: %w", id, err))
				return
			}
			if !yield(c, nil) {
				return
			}
			cur = c.Parent()
		}
	}
}

// IsAncestor reports whether a is b or reachable from b.
func (g *Graph) IsAncestor(a, b string) (bool, error) {
	for c, err := range g.Ancestors(b) {
		if err != nil {
			return false, err
		}
		if c.ID == a {
			return true, nil
		}
	}
	return false, nil
}

// SplitPoint returns the nearest common ancestor of a and b: every ancestor
// of a is collected, then b's ancestors are walked breadth-first until one
// of them is in that set.
func (g *Graph) SplitPoint(a, b string) (string, error) {
	seen := map[string]bool{}
	for c, err := range g.Ancestors(a) {
		if err != nil {
			return "", err
		}
		seen[c.ID] = true
	}

	for c, err := range g.Ancestors(b) {
		if err != nil {
			return "", err
		}
		if seen[c.ID] {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("commits %s and %s share no ancestor", a, b)
}

type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Parents   []string  `json:"parents,omitempty"`
}

func entryOf(c *object.Commit) LogEntry {
	return LogEntry{
		ID:        c.ID,
		Timestamp: c.Timestamp,
		Message:   c.Message,
		Parents:   c.Parents,
	}
}

// String renders the entry as one block of log output, trailing blank line
// included.
func (e LogEntry) String() string {
	var b strings.Builder
	b.WriteString("===\n")
	fmt.Fprintf(&b, "commit %s\n", e.ID)
	if len(e.Parents) > 1 {
		fmt.Fprintf(&b, "Merge: %s %s\n", short(e.Parents[0]), short(e.Parents[1]))
	}
	fmt.Fprintf(&b, "Date: %s\n", e.Timestamp.Local().Format(DateLayout))
	b.WriteString(e.Message)
	b.WriteString("\n\n")
	return b.String()
}

func short(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

// History returns the first-parent chain from id, newest first.
func (g *Graph) History(id string) ([]LogEntry, error) {
	var entries []LogEntry
	for c, err := range g.FirstParent(id) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entryOf(c))
	}
	return entries, nil
}

// All returns every stored commit, newest first; ties break on id.
func (g *Graph) All() ([]LogEntry, error) {
	commits, err := g.src.Commits()
	if err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(commits))
	for _, c := range commits {
		entries = append(entries, entryOf(c))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Find returns the ids of every commit whose message equals message.
func (g *Graph) Find(message string) ([]string, error) {
	entries, err := g.All()
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.Message == message {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) == 0 {
		return nil, twigerrors.NotFound("Found no commit with that message.")
	}
	return ids, nil
}
