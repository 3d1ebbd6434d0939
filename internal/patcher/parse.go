package patcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const noNewlineMarker = `\ No newline at end of file`

// diffHeaderPrefixes are the line openings that start a diff body. Any
// text before the first of them in a patch artifact is a preserved header.
var diffHeaderPrefixes = []string{"diff ", "--- ", "*** ", "Index: "}

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// ParseError reports malformed diff text.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// IsDiffHeader reports whether line opens a diff body.
func IsDiffHeader(line string) bool {
	for _, prefix := range diffHeaderPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// SplitHeader separates the free-text header of a patch artifact from its
// diff body. The header is returned verbatim, newlines included.
func SplitHeader(text string) (header, body string) {
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if IsDiffHeader(line) {
			return text[:offset], text[offset:]
		}
		offset += len(line)
	}
	return text, ""
}

// Parse reads unified diff text into file patches. Text between file
// patches that is not a hunk is kept as the extended header of the next
// file, or dropped when trailing.
func Parse(text string) ([]*FilePatch, error) {
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var (
		patches []*FilePatch
		current *FilePatch
		pending []string
	)
	for i := 0; i < len(lines); {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ "):
			current = &FilePatch{
				OrigName: parseName(line[4:]),
				NewName:  parseName(lines[i+1][4:]),
				Extended: pending,
			}
			pending = nil
			patches = append(patches, current)
			i += 2
		case strings.HasPrefix(line, "@@"):
			if current == nil {
				return nil, &ParseError{Line: i + 1, Msg: "hunk without a file header"}
			}
			hunk, next, err := parseHunk(lines, i)
			if err != nil {
				return nil, err
			}
			current.Hunks = append(current.Hunks, hunk)
			i = next
		default:
			if strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "Index: ") {
				pending = nil
			}
			pending = append(pending, strings.TrimRight(line, "\r\n"))
			i++
		}
	}
	if len(patches) == 0 {
		return nil, &ParseError{Line: 1, Msg: "no unified diff file header found"}
	}
	return patches, nil
}

func parseName(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if tab := strings.IndexByte(s, '\t'); tab >= 0 {
		s = s[:tab]
	}
	return strings.TrimSpace(s)
}

func parseHunk(lines []string, start int) (*Hunk, int, error) {
	header := strings.TrimRight(lines[start], "\r\n")
	m := hunkHeaderRegex.FindStringSubmatch(header)
	if m == nil {
		return nil, 0, &ParseError{Line: start + 1, Msg: fmt.Sprintf("bad hunk header %q", header)}
	}
	h := &Hunk{
		OrigStart: atoi(m[1]),
		OrigLines: countOrOne(m[2]),
		NewStart:  atoi(m[3]),
		NewLines:  countOrOne(m[4]),
		Section:   m[5],
	}

	oldLeft, newLeft := h.OrigLines, h.NewLines
	i := start + 1
	for ; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, `\`) {
			if len(h.Lines) == 0 {
				return nil, 0, &ParseError{Line: i + 1, Msg: "newline marker before any hunk line"}
			}
			last := &h.Lines[len(h.Lines)-1]
			last.Text = strings.TrimSuffix(last.Text, "\n")
			continue
		}
		if oldLeft == 0 && newLeft == 0 {
			break
		}

		text := line
		kind := LineContext
		if line == "\n" || line == "\r\n" {
			// Editors often strip the space from empty context lines.
			text = line
		} else {
			kind = LineKind(line[0])
			text = line[1:]
		}
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}

		switch kind {
		case LineContext:
			oldLeft--
			newLeft--
		case LineRemoved:
			oldLeft--
		case LineAdded:
			newLeft--
		default:
			return nil, 0, &ParseError{Line: i + 1, Msg: fmt.Sprintf("unexpected line in hunk: %q", strings.TrimRight(line, "\r\n"))}
		}
		if oldLeft < 0 || newLeft < 0 {
			return nil, 0, &ParseError{Line: i + 1, Msg: "hunk longer than its header says"}
		}
		h.Lines = append(h.Lines, Line{Kind: kind, Text: text})
	}
	if oldLeft > 0 || newLeft > 0 {
		return nil, 0, &ParseError{Line: i, Msg: fmt.Sprintf("truncated hunk %s", header)}
	}
	return h, i, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func countOrOne(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s)
}
