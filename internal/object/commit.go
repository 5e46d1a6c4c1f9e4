package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind tags a commit by its number of parents.
type Kind int

const (
	Root Kind = iota
	Normal
	Merge
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "root"
	case Normal:
		return "normal"
	case Merge:
		return "merge"
	}
	return "unknown"
}

const InitialMessage = "initial commit"

// Commit is an immutable snapshot. Tracking maps file paths to blob ids.
// Parents holds at most two ids; for a merge the current head comes first.
type Commit struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Tracking  map[string]string `json:"tracking"`
	Parents   []string          `json:"parents,omitempty"`
}

func (c *Commit) GetID() string { return c.ID }

// NewCommit builds a commit and derives its id. tracking is copied.
func NewCommit(ts time.Time, message string, tracking map[string]string, parents ...string) (*Commit, error) {
	if len(parents) > 2 {
		return nil, fmt.Errorf("commit has %d parents, at most 2 allowed", len(parents))
	}
	for _, p := range parents {
		if p == "" {
			return nil, fmt.Errorf("empty parent id")
		}
	}

	c := &Commit{
		Timestamp: ts,
		Message:   message,
		Tracking:  make(map[string]string, len(tracking)),
		Parents:   append([]string(nil), parents...),
	}
	for path, id := range tracking {
		c.Tracking[path] = id
	}
	c.ID = c.computeID()
	return c, nil
}

// RootCommit returns the commit every repository starts from.
func RootCommit() *Commit {
	c, _ := NewCommit(time.Unix(0, 0), InitialMessage, nil)
	return c
}

func (c *Commit) Kind() Kind {
	switch len(c.Parents) {
	case 0:
		return Root
	case 1:
		return Normal
	default:
		return Merge
	}
}

// Parent returns the first parent, or "" for the root commit.
func (c *Commit) Parent() string {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

// Tracked returns the tracked paths in sorted order.
func (c *Commit) Tracked() []string {
	paths := make([]string, 0, len(c.Tracking))
	for path := range c.Tracking {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// computeID hashes a canonical text form of every field except the id.
func (c *Commit) computeID() string {
	var b strings.Builder
	fmt.Fprintf(&b, "time %d\n", c.Timestamp.UnixNano())
	fmt.Fprintf(&b, "message %s\n", strconv.Quote(c.Message))
	for _, p := range c.Parents {
		fmt.Fprintf(&b, "parent %s\n", p)
	}
	for _, path := range c.Tracked() {
		fmt.Fprintf(&b, "file %s %s\n", strconv.Quote(path), c.Tracking[path])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
