package patcher

import (
	"context"
	"errors"
	"strings"
)

// ErrMalformed marks a patch the applier could not read at all. Callers
// treat every hunk of such a patch as rejected.
var ErrMalformed = errors.New("malformed patch")

// Result is the outcome of applying one file patch to a text.
type Result struct {
	// Content is the patched text.
	Content []byte
	// Applied counts the hunks that went in.
	Applied int
	// Rejected holds the hunks that could not be placed.
	Rejected []*Hunk
	// Delete is set when the patch removes the file and left it empty.
	Delete bool
	// Conflict explains why the patch as a whole did not apply. It is set
	// for patches that fail without any hunk to reject.
	Conflict string
}

// Failed reports whether anything in the patch was left unapplied.
func (r *Result) Failed() bool {
	return len(r.Rejected) > 0 || r.Conflict != ""
}

// Patcher applies a unified diff to the text of one file.
type Patcher interface {
	// Patch applies fp to original. exists reports whether the target
	// file was present; original is empty when it was not.
	Patch(ctx context.Context, original []byte, exists bool, fp *FilePatch) (*Result, error)
}

// Native applies hunks in process, matching context the way patch(1)
// does: exact context at the expected line or the nearest offset, then
// progressively ignoring up to Fuzz leading and trailing context lines.
type Native struct {
	Fuzz int
}

// NewNative returns a Native patcher with the given fuzz factor.
func NewNative(fuzz int) *Native {
	return &Native{Fuzz: fuzz}
}

func (n *Native) Patch(ctx context.Context, original []byte, exists bool, fp *FilePatch) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res, ok := trivialResult(original, exists, fp); ok {
		return res, nil
	}

	lines := SplitLines(original)
	res := &Result{}
	shift := 0
	floor := 0
	for _, h := range fp.Hunks {
		start, trimTop, trimBottom, ok := n.locate(lines, h, h.origIndex()+shift, floor)
		if !ok {
			res.Rejected = append(res.Rejected, h)
			continue
		}
		before := h.Before()
		after := h.After()
		before = before[trimTop : len(before)-trimBottom]
		after = after[trimTop : len(after)-trimBottom]

		lines = splice(lines, start, len(before), after)
		res.Applied++
		shift = start - trimTop - h.origIndex() + len(after) - len(before)
		floor = start + len(after)
	}

	res.Content = []byte(strings.Join(lines, ""))
	res.Delete = fp.IsDelete() && len(res.Rejected) == 0 && len(res.Content) == 0
	return res, nil
}

// Conflict reasons for patches that fail as a whole.
const (
	ConflictExists   = "file to create already exists with content"
	ConflictNotEmpty = "file to delete is not empty"
)

// trivialResult handles patches whose outcome does not depend on hunk
// matching: hunkless patches and additions over an existing file. An
// empty file stands in for a missing one.
func trivialResult(original []byte, exists bool, fp *FilePatch) (*Result, bool) {
	if fp.IsCreate() && exists && len(original) > 0 {
		return &Result{Content: original, Rejected: fp.Hunks, Conflict: ConflictExists}, true
	}
	if len(fp.Hunks) > 0 {
		return nil, false
	}
	res := &Result{Content: original}
	switch {
	case fp.IsDelete() && len(original) > 0:
		res.Conflict = ConflictNotEmpty
	case fp.IsDelete():
		res.Delete = true
	}
	return res, true
}

// locate finds where h applies. It returns the index the (trimmed)
// before-lines start at and how many context lines were dropped at each
// end.
func (n *Native) locate(lines []string, h *Hunk, expected, floor int) (start, trimTop, trimBottom int, ok bool) {
	before := h.Before()
	leading, trailing := h.contextEdges()

	prevTop, prevBottom := -1, -1
	for fuzz := 0; fuzz <= n.Fuzz; fuzz++ {
		top, bottom := min(fuzz, leading), min(fuzz, trailing)
		if top == prevTop && bottom == prevBottom {
			// No more context to give up.
			break
		}
		prevTop, prevBottom = top, bottom
		if len(before) > 0 && top+bottom >= len(before) {
			break
		}
		needle := before[top : len(before)-bottom]
		if pos := findNearest(lines, needle, expected+top, floor); pos >= 0 {
			return pos, top, bottom, true
		}
	}
	return 0, 0, 0, false
}

// findNearest returns the index of needle in haystack closest to want and
// not before floor, or -1. An empty needle matches at want itself.
func findNearest(haystack, needle []string, want, floor int) int {
	last := len(haystack) - len(needle)
	if last < floor {
		return -1
	}
	if len(needle) == 0 {
		if want >= floor && want <= len(haystack) {
			return want
		}
		return -1
	}
	want = max(floor, min(want, last))
	for d := 0; want-d >= floor || want+d <= last; d++ {
		if p := want + d; p <= last && matchAt(haystack, needle, p) {
			return p
		}
		if p := want - d; d > 0 && p >= floor && matchAt(haystack, needle, p) {
			return p
		}
	}
	return -1
}

func matchAt(haystack, needle []string, pos int) bool {
	for j := range needle {
		if haystack[pos+j] != needle[j] {
			return false
		}
	}
	return true
}

func splice(target []string, index, deleteCount int, replacement []string) []string {
	result := make([]string, 0, len(target)-deleteCount+len(replacement))
	result = append(result, target[:index]...)
	result = append(result, replacement...)
	result = append(result, target[index+deleteCount:]...)
	return result
}
