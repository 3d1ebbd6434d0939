// Package reconcile brings the patch store in line with the difference
// between the pristine and modified trees.
package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/sokinpui/patchdir/internal/classify"
	"github.com/sokinpui/patchdir/internal/fs"
	"github.com/sokinpui/patchdir/internal/patcher"
	"github.com/sokinpui/patchdir/internal/ui"
	"github.com/sokinpui/patchdir/model"
)

// Options configures a Reconciler.
type Options struct {
	Context int
	Exclude []string
}

// Reconciler generates, updates and prunes patch artifacts.
type Reconciler struct {
	layout *fs.Layout
	opts   Options
	logger *slog.Logger
}

// New creates a Reconciler for layout.
func New(layout *fs.Layout, opts Options, logger *slog.Logger) *Reconciler {
	return &Reconciler{layout: layout, opts: opts, logger: logger}
}

// decision is what reconciling one path will do.
type decision struct {
	change   model.PathChange
	artifact []byte
}

// Plan computes the per-path actions of a make run and the stale
// artifacts it would prune, without touching the patch store.
func (r *Reconciler) Plan(ctx context.Context) ([]model.PathChange, []string, error) {
	if err := r.checkModified(); err != nil {
		return nil, nil, err
	}
	paths, err := classify.Universe(r.layout, r.opts.Exclude, r.logger)
	if err != nil {
		return nil, nil, &model.ToolError{Op: "scan", Err: err}
	}

	var changes []model.PathChange
	kept := make(map[string]bool, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		d, err := r.decide(rel)
		if err != nil {
			return nil, nil, err
		}
		kept[rel] = d.change.Classification != model.Unchanged
		if d.change.Action != model.ActionNone {
			changes = append(changes, d.change)
		}
	}

	artifacts, err := r.artifacts()
	if err != nil {
		return nil, nil, err
	}
	var stale []string
	for _, rel := range artifacts {
		if _, seen := kept[rel]; !seen {
			stale = append(stale, rel)
		}
	}
	return changes, stale, nil
}

// Make runs make mode: every path of the two trees gets its artifact
// created, refreshed or removed, then stale artifacts and empty
// directories are pruned. A diff failure aborts the run; whatever was
// written so far stays, and a rerun converges.
func (r *Reconciler) Make(ctx context.Context) (*model.MakeReport, error) {
	if err := r.checkModified(); err != nil {
		return nil, err
	}
	paths, err := classify.Universe(r.layout, r.opts.Exclude, r.logger)
	if err != nil {
		return nil, &model.ToolError{Op: "scan", Err: err}
	}
	r.logger.Debug("reconciling", "paths", len(paths), "patches", r.layout.Patches)

	report := &model.MakeReport{Kept: make(map[string]bool, len(paths))}
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		d, err := r.decide(rel)
		if err != nil {
			return report, err
		}
		if err := r.commit(d); err != nil {
			return report, err
		}
		report.Kept[rel] = d.change.Classification != model.Unchanged
		if d.change.Action != model.ActionNone {
			report.Changes = append(report.Changes, d.change)
		}
	}

	if err := r.prune(report); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Reconciler) checkModified() error {
	info, err := os.Stat(r.layout.Modified)
	if err != nil {
		return &model.UsageError{Msg: fmt.Sprintf("no %s tree to generate patches from", r.layout.ModifiedName()), Err: err}
	}
	if !info.IsDir() {
		return model.Usagef("%s is not a directory", r.layout.Modified)
	}
	return nil
}

func (r *Reconciler) decide(rel string) (*decision, error) {
	class, err := classify.Classify(r.layout, rel)
	if err != nil {
		return nil, &model.ToolError{Op: "classify", Path: rel, Err: err}
	}
	existing, had, err := fs.ReadOptional(r.layout.PatchPath(rel))
	if err != nil {
		return nil, &model.ToolError{Op: "read artifact", Path: rel, Err: err}
	}

	d := &decision{change: model.PathChange{Path: rel, Classification: class, Action: model.ActionNone}}
	if class == model.Unchanged {
		if had {
			d.change.Action = model.ActionRemove
		}
		return d, nil
	}

	// The absent side of an added or deleted file may still be a directory.
	var orig, mod []byte
	if class != model.Added {
		if orig, err = os.ReadFile(r.layout.PristinePath(rel)); err != nil {
			return nil, &model.ToolError{Op: "read", Path: r.layout.PristinePath(rel), Err: err}
		}
	}
	if class != model.Deleted {
		if mod, err = os.ReadFile(r.layout.ModifiedPath(rel)); err != nil {
			return nil, &model.ToolError{Op: "read", Path: r.layout.ModifiedPath(rel), Err: err}
		}
	}
	body, err := patcher.Encode(rel, class, orig, mod, patcher.EncodeOptions{
		Context: r.opts.Context,
		OrigDir: r.layout.PristineName(),
		NewDir:  r.layout.ModifiedName(),
	})
	if err != nil {
		return nil, err
	}

	header, _ := patcher.SplitHeader(string(existing))
	d.artifact = []byte(header + body)
	switch {
	case !had:
		d.change.Action = model.ActionCreate
	case bytes.Equal(existing, d.artifact):
		d.change.Action = model.ActionKeep
	default:
		d.change.Action = model.ActionUpdate
	}
	return d, nil
}

func (r *Reconciler) commit(d *decision) error {
	rel := d.change.Path
	artifact := r.layout.PatchPath(rel)
	switch d.change.Action {
	case model.ActionRemove:
		if err := fs.RemoveFile(artifact); err != nil {
			return &model.ToolError{Op: "remove artifact", Path: rel, Err: err}
		}
		ui.Info("  -> Removed patch for reverted file: %s", r.layout.Display(artifact))
	case model.ActionCreate, model.ActionUpdate:
		if err := fs.WriteFileAtomic(artifact, d.artifact, 0o644); err != nil {
			return &model.ToolError{Op: "write artifact", Path: rel, Err: err}
		}
		ui.Success("  -> %s patch (%s): %s", verb(d.change.Action), d.change.Classification, r.layout.Display(artifact))
	case model.ActionKeep:
		r.logger.Debug("artifact up to date", "path", rel)
	}
	return nil
}

func verb(a model.Action) string {
	if a == model.ActionCreate {
		return "Created"
	}
	return "Updated"
}

// artifacts lists the relative paths that have a patch artifact.
func (r *Reconciler) artifacts() ([]string, error) {
	files, err := fs.ListFiles(r.layout.Patches, nil, r.logger)
	if err != nil {
		return nil, &model.ToolError{Op: "scan", Path: r.layout.Patches, Err: err}
	}
	rels := fs.TrimSuffixPaths(files, r.layout.PatchSuffix)
	sort.Strings(rels)
	return rels, nil
}

// prune deletes every artifact not kept by this run, then the directories
// that leaves empty.
func (r *Reconciler) prune(report *model.MakeReport) error {
	rels, err := r.artifacts()
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if report.Kept[rel] {
			continue
		}
		artifact := r.layout.PatchPath(rel)
		if err := fs.RemoveFile(artifact); err != nil {
			return &model.ToolError{Op: "remove artifact", Path: rel, Err: err}
		}
		if _, seen := report.Kept[rel]; !seen {
			report.Pruned = append(report.Pruned, rel)
			ui.Warning("  -> Pruned stale patch: %s", r.layout.Display(artifact))
		}
	}

	removed, err := fs.PruneEmptyDirs(r.layout.Patches)
	if err != nil {
		return &model.ToolError{Op: "prune", Path: r.layout.Patches, Err: err}
	}
	for _, dir := range removed {
		report.RemovedDirs = append(report.RemovedDirs, r.layout.Display(dir))
		r.logger.Debug("removed empty directory", "dir", dir)
	}
	return nil
}
