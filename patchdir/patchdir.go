package patchdir

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime/debug"

	"github.com/sokinpui/patchdir/cli"
	"github.com/sokinpui/patchdir/internal/apply"
	"github.com/sokinpui/patchdir/internal/config"
	"github.com/sokinpui/patchdir/internal/fs"
	"github.com/sokinpui/patchdir/internal/logging"
	"github.com/sokinpui/patchdir/internal/patcher"
	"github.com/sokinpui/patchdir/internal/reconcile"
	"github.com/sokinpui/patchdir/internal/ui"
	"github.com/sokinpui/patchdir/model"
)

// App orchestrates one run against a working root.
type App struct {
	cfg     *cli.Config
	conf    config.Config
	layout  *fs.Layout
	patcher patcher.Patcher
	logger  *slog.Logger
}

// New resolves configuration and the working root. Every error it returns
// is a *model.UsageError.
func New(cfg *cli.Config) (*App, error) {
	root := cfg.Root
	if root == "" {
		root = "."
	}

	var (
		conf config.Config
		err  error
	)
	if cfg.ConfigFile != "" {
		conf, err = config.Load(cfg.ConfigFile, false)
	} else {
		conf, err = config.LoadForRoot(root)
	}
	if err != nil {
		return nil, &model.UsageError{Msg: "failed to load configuration", Err: err}
	}
	cfg.Override(&conf)
	if err := conf.Validate(); err != nil {
		return nil, &model.UsageError{Msg: "invalid options", Err: err}
	}

	layout, err := fs.NewLayout(root, conf)
	if err != nil {
		return nil, err
	}
	p, err := newPatcher(conf)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		conf:    conf,
		layout:  layout,
		patcher: p,
		logger:  logging.New(logging.Config{Verbose: cfg.Verbose, Output: ui.Output()}),
	}, nil
}

func newPatcher(conf config.Config) (patcher.Patcher, error) {
	if conf.Applier != config.ApplierGNU {
		return patcher.NewNative(conf.Fuzz), nil
	}
	command, err := exec.LookPath(conf.PatchCommand)
	if err != nil {
		return nil, &model.UsageError{Msg: fmt.Sprintf("gnu applier needs %q", conf.PatchCommand), Err: err}
	}
	return patcher.NewGNU(command, conf.Fuzz), nil
}

// Execute runs the configured mode. An apply run that leaves rejects
// returns its summary together with model.ErrRejects.
func (a *App) Execute(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &model.DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch a.cfg.Mode {
	case cli.ModeMake:
		return a.makePatches(ctx)
	case cli.ModeApply:
		return a.applyPatches(ctx)
	case cli.ModeStatus:
		return a.status(ctx)
	default:
		return model.Summary{}, model.Usagef("unknown mode %q", a.cfg.Mode)
	}
}

func (a *App) reconciler() *reconcile.Reconciler {
	return reconcile.New(a.layout, reconcile.Options{
		Context: a.conf.Context,
		Exclude: a.conf.Exclude,
	}, a.logger)
}

// makePatches regenerates the patch store from the two trees.
func (a *App) makePatches(ctx context.Context) (model.Summary, error) {
	ui.Header("Generating patches in %s", a.layout.Display(a.layout.Patches))
	report, err := a.reconciler().Make(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	return makeSummary(a.layout, report), nil
}

func makeSummary(layout *fs.Layout, report *model.MakeReport) model.Summary {
	var s model.Summary
	for _, c := range report.Changes {
		switch c.Action {
		case model.ActionCreate:
			s.Created = append(s.Created, layout.Display(layout.PatchPath(c.Path)))
		case model.ActionUpdate:
			s.Modified = append(s.Modified, layout.Display(layout.PatchPath(c.Path)))
		case model.ActionRemove:
			s.Removed = append(s.Removed, layout.Display(layout.PatchPath(c.Path)))
		}
	}
	for _, rel := range report.Pruned {
		s.Removed = append(s.Removed, layout.Display(layout.PatchPath(rel)))
	}
	kept := 0
	for _, k := range report.Kept {
		if k {
			kept++
		}
	}
	s.Message = fmt.Sprintf("Patch store holds %d patch(es).", kept)
	return s
}

// applyPatches rebuilds the modified tree and replays the patch store.
func (a *App) applyPatches(ctx context.Context) (model.Summary, error) {
	ui.Header("Applying patches from %s", a.layout.Display(a.layout.Patches))
	report, err := apply.New(a.layout, a.patcher, a.logger).Apply(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	s := applySummary(a.layout, report)
	if report.Failed() {
		return s, model.ErrRejects
	}
	return s, nil
}

func applySummary(layout *fs.Layout, report *model.ApplyReport) model.Summary {
	var s model.Summary
	for _, o := range report.Outcomes {
		target := layout.Display(layout.ModifiedPath(o.Target))
		switch {
		case !o.Clean():
			if o.RejectPath != "" {
				s.Failed = append(s.Failed, layout.Display(o.RejectPath))
			} else {
				s.Failed = append(s.Failed, layout.Display(layout.PatchPath(o.Path)))
			}
		case o.Deleted:
			s.Removed = append(s.Removed, target)
		case o.Created:
			s.Created = append(s.Created, target)
		case o.HunksApplied > 0:
			s.Modified = append(s.Modified, target)
		}
	}
	if len(s.Failed) > 0 {
		s.RejectDir = layout.Display(report.RejectDir)
		s.Message = fmt.Sprintf("%d patch(es) left rejects; see %s.", len(s.Failed), s.RejectDir)
	} else {
		s.Message = fmt.Sprintf("All %d patch(es) applied cleanly.", len(report.Outcomes))
	}
	return s
}

// status reports what make mode would do without writing anything.
func (a *App) status(ctx context.Context) (model.Summary, error) {
	changes, stale, err := a.reconciler().Plan(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	ui.Header("Status of %s against %s", a.layout.ModifiedName(), a.layout.PristineName())
	pending := 0
	for _, c := range changes {
		if c.Action == model.ActionKeep {
			a.logger.Debug("up to date", "path", c.Path, "classification", c.Classification.String())
			continue
		}
		pending++
		ui.Path("%-9s %-7s %s", c.Classification, c.Action, c.Path)
	}
	for _, rel := range stale {
		pending++
		ui.Path("%-9s %-7s %s", "stale", "prune", rel)
	}
	if pending == 0 {
		return model.Summary{Message: "Patch store is up to date."}, nil
	}
	return model.Summary{Message: fmt.Sprintf("%d artifact(s) would change on make.", pending)}, nil
}
