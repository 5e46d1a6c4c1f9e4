// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string
	OldNum  int // 1-based; 0 for additions
	NewNum  int // 1-based; 0 for deletions
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// DiffResult contains the complete diff information
type DiffResult struct {
	Path  string
	Hunks []Hunk
	Stats struct {
		Additions int
		Deletions int
		Changes   int
	}
}

// Hunk represents a continuous section of changes
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	return &Engine{
		contextLines: contextLines,
	}
}

func splitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	return bytes.Split(bytes.TrimSuffix(content, []byte{'\n'}), []byte{'\n'})
}

// Diff generates a line-by-line diff between two contents
func (e *Engine) Diff(oldContent, newContent []byte) *DiffResult {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	script := e.editScript(oldLines, newLines, e.computeLCS(oldLines, newLines))

	result := &DiffResult{Hunks: e.group(script)}
	for _, line := range script {
		switch line.Type {
		case Addition:
			result.Stats.Additions++
		case Deletion:
			result.Stats.Deletions++
		}
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions
	return result
}

// computeLCS returns m where m[i][j] is the LCS length of oldLines[i:] and
// newLines[j:].
func (e *Engine) computeLCS(oldLines, newLines [][]byte) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := len(oldLines) - 1; i >= 0; i-- {
		for j := len(newLines) - 1; j >= 0; j-- {
			if bytes.Equal(oldLines[i], newLines[j]) {
				matrix[i][j] = matrix[i+1][j+1] + 1
			} else {
				matrix[i][j] = max(matrix[i+1][j], matrix[i][j+1])
			}
		}
	}

	return matrix
}

// editScript walks the LCS matrix front to back, preferring deletions.
func (e *Engine) editScript(oldLines, newLines [][]byte, lcs [][]int) []Line {
	var script []Line
	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i < len(oldLines) && j < len(newLines) && bytes.Equal(oldLines[i], newLines[j]):
			script = append(script, Line{Type: Context, Content: string(oldLines[i]), OldNum: i + 1, NewNum: j + 1})
			i++
			j++
		case i < len(oldLines) && (j == len(newLines) || lcs[i+1][j] >= lcs[i][j+1]):
			script = append(script, Line{Type: Deletion, Content: string(oldLines[i]), OldNum: i + 1})
			i++
		default:
			script = append(script, Line{Type: Addition, Content: string(newLines[j]), NewNum: j + 1})
			j++
		}
	}
	return script
}

// group cuts the script into hunks, keeping contextLines of context around
// each change and merging hunks whose context would overlap.
func (e *Engine) group(script []Line) []Hunk {
	var hunks []Hunk
	start, end := -1, -1

	flush := func() {
		if start < 0 {
			return
		}
		hunks = append(hunks, e.hunk(script, start, end))
		start, end = -1, -1
	}

	for k, line := range script {
		if line.Type == Context {
			continue
		}
		lo := max(0, k-e.contextLines)
		hi := min(len(script)-1, k+e.contextLines)
		if start >= 0 && lo > end+1 {
			flush()
		}
		if start < 0 {
			start = lo
		}
		end = hi
	}
	flush()
	return hunks
}

func (e *Engine) hunk(script []Line, start, end int) Hunk {
	// line numbers consumed before start
	oldBefore, newBefore := 0, 0
	for _, line := range script[:start] {
		if line.Type != Addition {
			oldBefore++
		}
		if line.Type != Deletion {
			newBefore++
		}
	}

	h := Hunk{Lines: append([]Line(nil), script[start:end+1]...)}
	for _, line := range h.Lines {
		if line.Type != Addition {
			h.OldLines++
		}
		if line.Type != Deletion {
			h.NewLines++
		}
	}
	h.OldStart = oldBefore
	if h.OldLines > 0 {
		h.OldStart++
	}
	h.NewStart = newBefore
	if h.NewLines > 0 {
		h.NewStart++
	}
	return h
}

// Format returns a unified-style rendering of the diff.
func (r *DiffResult) Format() string {
	var buf bytes.Buffer

	if r.Path != "" && len(r.Hunks) > 0 {
		fmt.Fprintf(&buf, "--- a/%s\n+++ b/%s\n", r.Path, r.Path)
	}
	for _, hunk := range r.Hunks {
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n",
			hunk.OldStart, hunk.OldLines,
			hunk.NewStart, hunk.NewLines)

		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				buf.WriteString("+")
			case Deletion:
				buf.WriteString("-")
			case Context:
				buf.WriteString(" ")
			}
			buf.WriteString(line.Content)
			buf.WriteString("\n")
		}
	}

	return buf.String()
}
