package patcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// GNU applies patches by running patch(1) against a scratch copy of the
// file. Rejects come back through a unified-format reject file.
type GNU struct {
	Command string
	Fuzz    int
}

// NewGNU returns a GNU patcher running command.
func NewGNU(command string, fuzz int) *GNU {
	return &GNU{Command: command, Fuzz: fuzz}
}

func (g *GNU) Patch(ctx context.Context, original []byte, exists bool, fp *FilePatch) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res, ok := trivialResult(original, exists, fp); ok {
		return res, nil
	}

	patchText, err := Render(fp, fp.Hunks)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "patchdir-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	sourcePath := filepath.Join(dir, "source")
	outPath := filepath.Join(dir, "out")
	rejectPath := filepath.Join(dir, "reject")
	if err := os.WriteFile(sourcePath, original, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write scratch copy: %w", err)
	}

	cmd := exec.CommandContext(ctx, g.Command,
		"--force", "--silent", "--no-backup-if-mismatch",
		"--reject-format=unified",
		"--fuzz="+strconv.Itoa(g.Fuzz),
		"-o", outPath, "-r", rejectPath,
		sourcePath)
	cmd.Stdin = strings.NewReader(patchText)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr) && exitErr.ExitCode() == 1:
		// Some hunks failed; the reject file says which.
	case errors.As(runErr, &exitErr):
		return nil, fmt.Errorf("%w: `%s` exited %d: %s", ErrMalformed, g.Command, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
	default:
		return nil, fmt.Errorf("`%s` command failed: %w", g.Command, runErr)
	}

	content, err := os.ReadFile(outPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading patch output: %w", err)
	}
	if errors.Is(err, os.ErrNotExist) {
		// patch(1) writes no output when it removes the file.
		content = original
		if fp.IsDelete() {
			content = nil
		}
	}

	res := &Result{Content: content}
	rejectText, err := os.ReadFile(rejectPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading reject file: %w", err)
	}
	if len(bytes.TrimSpace(rejectText)) > 0 {
		rejected, err := Parse(string(rejectText))
		if err != nil {
			// Unreadable rejects still mean nothing can be trusted.
			res.Rejected = fp.Hunks
		} else {
			for _, p := range rejected {
				res.Rejected = append(res.Rejected, p.Hunks...)
			}
		}
	}
	res.Applied = len(fp.Hunks) - len(res.Rejected)
	if res.Applied < 0 {
		res.Applied = 0
	}
	res.Delete = fp.IsDelete() && len(res.Rejected) == 0 && len(res.Content) == 0
	return res, nil
}
