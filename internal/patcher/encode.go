package patcher

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/sokinpui/patchdir/model"
)

// EncodeOptions controls diff generation.
type EncodeOptions struct {
	// Context is the number of unchanged lines around each change.
	Context int
	// OrigDir and NewDir prefix the file names inside the diff so the
	// result applies with strip level 1.
	OrigDir string
	NewDir  string
}

const emptyFileMode = "100644"

// Encode renders the diff for one classified path. orig and mod are the
// pristine and modified contents; the missing side of an added or deleted
// file is nil.
func Encode(rel string, class model.Classification, orig, mod []byte, opts EncodeOptions) (string, error) {
	fp := &FilePatch{
		OrigName: opts.OrigDir + "/" + rel,
		NewName:  opts.NewDir + "/" + rel,
	}
	switch class {
	case model.Added:
		fp.OrigName = DevNull
		orig = nil
	case model.Deleted:
		fp.NewName = DevNull
		mod = nil
	case model.Modified:
		if bytes.Equal(orig, mod) {
			return "", &model.ToolError{Op: "diff", Path: rel, Err: fmt.Errorf("classified modified but contents are identical")}
		}
	default:
		return "", &model.ToolError{Op: "diff", Path: rel, Err: fmt.Errorf("nothing to encode for %s file", class)}
	}

	fp.Hunks = BuildHunks(SplitLines(orig), SplitLines(mod), opts.Context)
	if len(fp.Hunks) == 0 {
		// Without hunks patch(1) only learns of an empty file from a git
		// extended header.
		mode := "new file mode " + emptyFileMode
		if class == model.Deleted {
			mode = "deleted file mode " + emptyFileMode
		}
		fp.Extended = []string{
			"diff --git " + opts.OrigDir + "/" + rel + " " + opts.NewDir + "/" + rel,
			mode,
		}
	}
	out, err := Render(fp, fp.Hunks)
	if err != nil {
		return "", &model.ToolError{Op: "diff", Path: rel, Err: err}
	}
	return out, nil
}

// BuildHunks computes unified diff hunks between two line slices.
func BuildHunks(a, b []string, context int) []*Hunk {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	if context < 0 {
		context = 0
	}
	m := difflib.NewMatcher(a, b)
	var hunks []*Hunk
	for _, group := range m.GetGroupedOpCodes(context) {
		first, last := group[0], group[len(group)-1]
		h := &Hunk{
			OrigStart: first.I1 + 1,
			OrigLines: last.I2 - first.I1,
			NewStart:  first.J1 + 1,
			NewLines:  last.J2 - first.J1,
		}
		if h.OrigLines == 0 {
			h.OrigStart--
		}
		if h.NewLines == 0 {
			h.NewStart--
		}
		changed := false
		for _, op := range group {
			switch op.Tag {
			case 'e':
				for _, line := range a[op.I1:op.I2] {
					h.Lines = append(h.Lines, Line{Kind: LineContext, Text: line})
				}
			case 'r', 'd', 'i':
				changed = true
				for _, line := range a[op.I1:op.I2] {
					h.Lines = append(h.Lines, Line{Kind: LineRemoved, Text: line})
				}
				for _, line := range b[op.J1:op.J2] {
					h.Lines = append(h.Lines, Line{Kind: LineAdded, Text: line})
				}
			}
		}
		if changed {
			hunks = append(hunks, h)
		}
	}
	return hunks
}

// Render prints fp's extended header and names followed by the given
// hunks in unified diff format. Passing a subset of fp.Hunks renders a
// reject artifact.
func Render(fp *FilePatch, hunks []*Hunk) (string, error) {
	fd := &diff.FileDiff{
		OrigName: fp.OrigName,
		NewName:  fp.NewName,
		Extended: fp.Extended,
		Hunks:    make([]*diff.Hunk, 0, len(hunks)),
	}
	for _, h := range hunks {
		fd.Hunks = append(fd.Hunks, toFileDiffHunk(h))
	}
	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("printing diff: %w", err)
	}
	return string(out), nil
}

func toFileDiffHunk(h *Hunk) *diff.Hunk {
	dh := &diff.Hunk{
		OrigStartLine: int32(h.OrigStart),
		OrigLines:     int32(h.OrigLines),
		NewStartLine:  int32(h.NewStart),
		NewLines:      int32(h.NewLines),
		Section:       h.Section,
	}
	var body bytes.Buffer
	for i, l := range h.Lines {
		body.WriteByte(byte(l.Kind))
		body.WriteString(l.Text)
		if strings.HasSuffix(l.Text, "\n") {
			continue
		}
		switch {
		case l.Kind == LineRemoved && dh.OrigNoNewlineAt == 0:
			body.WriteByte('\n')
			dh.OrigNoNewlineAt = int32(body.Len())
		case i != len(h.Lines)-1:
			// Only the final line of a side may lack a newline.
			body.WriteByte('\n')
		}
	}
	dh.Body = body.Bytes()
	return dh
}
