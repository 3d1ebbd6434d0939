// Package apply rebuilds the modified tree from the pristine tree and the
// patch store.
package apply

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/sokinpui/patchdir/internal/fs"
	"github.com/sokinpui/patchdir/internal/patcher"
	"github.com/sokinpui/patchdir/internal/ui"
	"github.com/sokinpui/patchdir/model"
)

// Applier replays the patch store onto a fresh copy of the pristine tree.
type Applier struct {
	layout  *fs.Layout
	patcher patcher.Patcher
	logger  *slog.Logger
}

// New creates an Applier that places hunks with p.
func New(layout *fs.Layout, p patcher.Patcher, logger *slog.Logger) *Applier {
	return &Applier{layout: layout, patcher: p, logger: logger}
}

// Apply rebuilds the modified tree and applies every patch artifact in
// path order. A patch that does not apply cleanly leaves a reject
// artifact and marks the report failed; its siblings are still applied
// and nothing is rolled back. Artifacts whose target is shadowed get one
// more try after the rest. The returned error is reserved for failures of
// the environment, not of hunks.
func (a *Applier) Apply(ctx context.Context) (*model.ApplyReport, error) {
	if err := fs.ReplaceTree(a.layout.Pristine, a.layout.Modified); err != nil {
		return nil, &model.ToolError{Op: "rebuild", Path: a.layout.Modified, Err: err}
	}
	ui.Info("Rebuilt %s from %s", a.layout.Display(a.layout.Modified), a.layout.Display(a.layout.Pristine))

	if err := os.RemoveAll(a.layout.Rejects); err != nil {
		return nil, &model.ToolError{Op: "clear rejects", Path: a.layout.Rejects, Err: err}
	}

	files, err := fs.ListFiles(a.layout.Patches, nil, a.logger)
	if err != nil {
		return nil, &model.ToolError{Op: "scan", Path: a.layout.Patches, Err: err}
	}
	keys := fs.TrimSuffixPaths(files, a.layout.PatchSuffix)
	sort.Strings(keys)

	report := &model.ApplyReport{RejectDir: a.layout.Rejects}
	var deferred []string
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, wait, err := a.applyOne(ctx, key, true)
		if err != nil {
			return report, err
		}
		if wait {
			deferred = append(deferred, key)
			continue
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	// A later patch may have deleted what stood in the way.
	for _, key := range deferred {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		a.logger.Debug("retrying patch with a shadowed target", "artifact", key)
		outcome, _, err := a.applyOne(ctx, key, false)
		if err != nil {
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if _, err := fs.PruneEmptyDirs(a.layout.Rejects); err != nil {
		return report, &model.ToolError{Op: "prune", Path: a.layout.Rejects, Err: err}
	}
	return report, nil
}

// applyOne applies the artifact for key. With mayDefer set, an artifact
// whose target is taken by a directory or sits under a file is left
// untouched and reported as waiting.
func (a *Applier) applyOne(ctx context.Context, key string, mayDefer bool) (model.PatchOutcome, bool, error) {
	outcome := model.PatchOutcome{Path: key, Target: key}
	artifact := a.layout.PatchPath(key)
	raw, err := os.ReadFile(artifact)
	if err != nil {
		return outcome, false, &model.ToolError{Op: "read artifact", Path: key, Err: err}
	}

	_, body := patcher.SplitHeader(string(raw))
	patches, err := patcher.Parse(body)
	if err != nil {
		ui.Error("  -> Malformed patch %s: %v", a.layout.Display(artifact), err)
		outcome.Malformed = true
		return outcome, false, a.writeReject(&outcome, malformedReject(string(raw), body))
	}

	if mayDefer {
		for _, fp := range patches {
			if _, _, err := fs.ReadRegular(a.layout.ModifiedPath(a.target(key, fp))); errors.Is(err, fs.ErrNotRegular) {
				return outcome, true, nil
			}
		}
	}

	var rejects strings.Builder
	for _, fp := range patches {
		if err := a.applyFile(ctx, key, fp, &outcome, &rejects); err != nil {
			return outcome, false, err
		}
	}

	if err := a.writeReject(&outcome, rejects.String()); err != nil {
		return outcome, false, err
	}
	switch {
	case outcome.Clean():
		ui.Success("  -> Applied %s (%d hunk(s))", a.layout.Display(artifact), outcome.HunksApplied)
	case outcome.HunksRejected == 0:
		ui.Error("  -> Rejected %s: %s", a.layout.Display(artifact), outcome.Conflict)
	default:
		ui.Error("  -> %d of %d hunk(s) rejected for %s", outcome.HunksRejected, outcome.HunksRejected+outcome.HunksApplied, a.layout.Display(artifact))
	}
	return outcome, false, nil
}

// target resolves the tree-relative path fp applies to, falling back to
// the artifact key.
func (a *Applier) target(key string, fp *patcher.FilePatch) string {
	target, err := fp.Target(1)
	if err != nil {
		a.logger.Warn("patch names no usable target, using artifact path", "artifact", key, "error", err)
		return key
	}
	return target
}

func (a *Applier) applyFile(ctx context.Context, key string, fp *patcher.FilePatch, outcome *model.PatchOutcome, rejects *strings.Builder) error {
	target := a.target(key, fp)
	outcome.Target = target
	path := a.layout.ModifiedPath(target)

	var res *patcher.Result
	original, exists, err := fs.ReadRegular(path)
	switch {
	case errors.Is(err, fs.ErrNotRegular):
		a.logger.Warn("patch target is not a regular file", "artifact", key, "target", target)
		res = &patcher.Result{Rejected: fp.Hunks, Conflict: conflictNotRegular}
	case err != nil:
		return &model.ToolError{Op: "read", Path: path, Err: err}
	default:
		res, err = a.patcher.Patch(ctx, original, exists, fp)
		switch {
		case errors.Is(err, patcher.ErrMalformed):
			a.logger.Warn("patcher could not read patch", "artifact", key, "error", err)
			res = &patcher.Result{Content: original, Rejected: fp.Hunks}
		case err != nil:
			if ctx.Err() != nil {
				return err
			}
			return &model.ToolError{Op: "patch", Path: key, Err: err}
		}
	}

	outcome.HunksApplied += res.Applied
	outcome.HunksRejected += len(res.Rejected)
	if res.Conflict != "" {
		outcome.Conflict = res.Conflict
	}
	if res.Failed() {
		text, err := patcher.Render(fp, res.Rejected)
		if err != nil {
			return &model.ToolError{Op: "render reject", Path: key, Err: err}
		}
		if res.Conflict != "" {
			rejects.WriteString("# " + target + ": " + res.Conflict + "\n")
		}
		rejects.WriteString(text)
	}
	if res.Conflict == conflictNotRegular {
		return nil
	}

	switch {
	case res.Delete:
		if err := fs.RemoveFile(path); err != nil {
			return &model.ToolError{Op: "delete", Path: path, Err: err}
		}
		if err := fs.RemoveEmptyParents(path, a.layout.Modified); err != nil {
			return &model.ToolError{Op: "prune", Path: a.layout.Modified, Err: err}
		}
		outcome.Deleted = true
	case res.Applied > 0 || (!exists && fp.IsCreate() && !res.Failed()):
		perm := os.FileMode(0o644)
		if info, err := os.Stat(path); err == nil {
			perm = info.Mode().Perm()
		}
		if err := fs.WriteFileAtomic(path, res.Content, perm); err != nil {
			return &model.ToolError{Op: "write", Path: path, Err: err}
		}
		outcome.Created = !exists
	}
	return nil
}

const conflictNotRegular = "target is not a regular file"

// writeReject stores text as the reject artifact of outcome, or removes
// the artifact when text is empty.
func (a *Applier) writeReject(outcome *model.PatchOutcome, text string) error {
	p := a.layout.RejectPath(outcome.Path)
	if text == "" {
		if err := fs.RemoveFile(p); err != nil {
			return &model.ToolError{Op: "remove reject", Path: p, Err: err}
		}
		return nil
	}
	if err := fs.WriteFileAtomic(p, []byte(text), 0o644); err != nil {
		return &model.ToolError{Op: "write reject", Path: p, Err: err}
	}
	outcome.RejectPath = p
	return nil
}

func malformedReject(raw, body string) string {
	switch {
	case strings.TrimSpace(body) != "":
		return body
	case strings.TrimSpace(raw) != "":
		return raw
	default:
		return "# empty patch artifact\n"
	}
}
