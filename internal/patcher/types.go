// Package patcher encodes, parses and applies single-file unified diffs.
//
// Lines are kept with their "\n" terminator. A line without one is the
// last line of a file that does not end in a newline; in diff text that is
// spelled with a "\ No newline at end of file" marker.
package patcher

import (
	"fmt"
	"path"
	"strings"
)

// DevNull is the name used for the missing side of an added or deleted file.
const DevNull = "/dev/null"

// LineKind is the prefix of a hunk line.
type LineKind byte

const (
	LineContext LineKind = ' '
	LineRemoved LineKind = '-'
	LineAdded   LineKind = '+'
)

// Line is one hunk line. Text carries the line terminator, if any.
type Line struct {
	Kind LineKind
	Text string
}

// Hunk is a contiguous region of change.
type Hunk struct {
	OrigStart int
	OrigLines int
	NewStart  int
	NewLines  int
	Section   string
	Lines     []Line
}

// Before returns the lines the hunk expects to find.
func (h *Hunk) Before() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Kind != LineAdded {
			out = append(out, l.Text)
		}
	}
	return out
}

// After returns the lines the hunk leaves behind.
func (h *Hunk) After() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Kind != LineRemoved {
			out = append(out, l.Text)
		}
	}
	return out
}

// contextEdges counts the context lines leading and trailing the hunk.
func (h *Hunk) contextEdges() (leading, trailing int) {
	for _, l := range h.Lines {
		if l.Kind != LineContext {
			break
		}
		leading++
	}
	if leading == len(h.Lines) {
		return leading, 0
	}
	for i := len(h.Lines) - 1; i >= 0; i-- {
		if h.Lines[i].Kind != LineContext {
			break
		}
		trailing++
	}
	return leading, trailing
}

// origIndex is the zero-based line index the hunk's before-lines start at.
func (h *Hunk) origIndex() int {
	if h.OrigLines == 0 {
		return h.OrigStart
	}
	return h.OrigStart - 1
}

// FilePatch is the diff of a single file.
type FilePatch struct {
	OrigName string
	NewName  string
	// Extended holds non-hunk lines that preceded the file header, such
	// as "diff " or "Index: " lines.
	Extended []string
	Hunks    []*Hunk
}

// IsCreate reports whether the patch adds a file.
func (fp *FilePatch) IsCreate() bool { return fp.OrigName == DevNull }

// IsDelete reports whether the patch removes a file.
func (fp *FilePatch) IsDelete() bool { return fp.NewName == DevNull }

// Target returns the path the patch applies to, after removing strip
// leading components. The new name wins unless it is /dev/null.
func (fp *FilePatch) Target(strip int) (string, error) {
	name := fp.NewName
	if name == "" || name == DevNull {
		name = fp.OrigName
	}
	if name == "" || name == DevNull {
		return "", fmt.Errorf("patch names no file")
	}
	parts := strings.Split(name, "/")
	if len(parts) <= strip {
		return "", fmt.Errorf("cannot strip %d components from %q", strip, name)
	}
	rel := path.Clean(strings.Join(parts[strip:], "/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", fmt.Errorf("patch target %q escapes the tree", name)
	}
	return rel, nil
}

// SplitLines splits data after every newline. The final element lacks a
// terminator only when data does not end in one.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
