package patchdir

import (
	"context"
	"fmt"

	"github.com/sokinpui/patchdir/cli"
	"github.com/sokinpui/patchdir/model"
)

// Options for using patchdir as a library.
type Options struct {
	// Applier is "native" (default) or "gnu".
	Applier string
	// Fuzz overrides the fuzz factor when non-nil.
	Fuzz *int
	// Context overrides the number of diff context lines when non-nil.
	Context *int
	// Exclude adds glob patterns of paths to leave alone.
	Exclude []string
	// ConfigFile replaces <root>/.patchdir.yaml.
	ConfigFile string
}

func (o Options) cliConfig(mode cli.Mode, root string) *cli.Config {
	cfg := &cli.Config{
		Mode:       mode,
		Root:       root,
		ConfigFile: o.ConfigFile,
		Applier:    o.Applier,
		Exclude:    o.Exclude,
	}
	if o.Applier != "" {
		cfg.SetChanged("applier")
	}
	if o.Fuzz != nil {
		cfg.Fuzz = *o.Fuzz
		cfg.SetChanged("fuzz")
	}
	if o.Context != nil {
		cfg.Context = *o.Context
		cfg.SetChanged("context")
	}
	if len(o.Exclude) > 0 {
		cfg.SetChanged("exclude")
	}
	return cfg
}

// Make regenerates the patch store of root.
func Make(ctx context.Context, root string, opts Options) (model.Summary, error) {
	return run(ctx, cli.ModeMake, root, opts)
}

// Apply rebuilds the modified tree of root from its patch store. A run
// with rejects returns model.ErrRejects alongside its summary.
func Apply(ctx context.Context, root string, opts Options) (model.Summary, error) {
	return run(ctx, cli.ModeApply, root, opts)
}

func run(ctx context.Context, mode cli.Mode, root string, opts Options) (model.Summary, error) {
	app, err := New(opts.cliConfig(mode, root))
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to initialize patchdir: %w", err)
	}
	return app.Execute(ctx)
}
