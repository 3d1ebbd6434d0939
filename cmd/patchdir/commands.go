package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sokinpui/patchdir/cli"
	"github.com/sokinpui/patchdir/internal/ui"
	"github.com/sokinpui/patchdir/model"
	"github.com/sokinpui/patchdir/patchdir"
)

// newRootCmd builds the command tree. Every command shares cfg.
func newRootCmd(cfg *cli.Config) *cobra.Command {
	var makeFlag, applyFlag bool

	rootCmd := &cobra.Command{
		Use:   "patchdir [-m|-a] [root]",
		Short: "Keep a directory of per-file patches between a pristine and a modified tree",
		Long: `patchdir records local edits on top of an upstream snapshot as one
unified diff per changed file, and rebuilds the edited tree from the
snapshot and those diffs.

A working root holds a pristine/ tree, a modified/ tree, a patch-store/
with <path>.patch artifacts and a reject-store/ with <path>.rej files for
hunks that did not apply.`,
		Args:          rootArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := cli.LegacyMode(makeFlag, applyFlag)
			if err != nil {
				return err
			}
			return run(cmd, cfg, mode, args)
		},
	}
	rootCmd.Flags().BoolVarP(&makeFlag, "make", "m", false, "Generate patches (same as 'patchdir make').")
	rootCmd.Flags().BoolVarP(&applyFlag, "apply", "a", false, "Apply patches (same as 'patchdir apply').")
	cli.BindFlags(rootCmd.PersistentFlags(), cfg)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &model.UsageError{Msg: "invalid flags", Err: err}
	})

	rootCmd.AddCommand(
		modeCmd(cfg, cli.ModeMake, "make [root]", "Generate or refresh the patch store from the modified tree"),
		modeCmd(cfg, cli.ModeApply, "apply [root]", "Rebuild the modified tree from pristine plus the patch store"),
		modeCmd(cfg, cli.ModeStatus, "status [root]", "Show what 'make' would change without writing anything"),
	)
	return rootCmd
}

func modeCmd(cfg *cli.Config, mode cli.Mode, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          rootArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, mode, args)
		},
	}
}

func rootArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return model.Usagef("accepts at most one working root, received %d", len(args))
	}
	return nil
}

func run(cmd *cobra.Command, cfg *cli.Config, mode cli.Mode, args []string) error {
	cfg.Mode = mode
	cfg.Root = "."
	if len(args) == 1 {
		cfg.Root = args[0]
	}
	cfg.MarkChanged(cmd.Flags())
	if cfg.NoColor {
		ui.DisableColor()
	}

	app, err := patchdir.New(cfg)
	if err != nil {
		return err
	}

	summary, err := app.Execute(cmd.Context())
	if err == nil || errors.Is(err, model.ErrRejects) {
		ui.PrintSummary(summary)
	}
	return err
}

// report prints a failed run's error to the status output.
func report(err error, verbose bool) {
	if errors.Is(err, model.ErrRejects) {
		return
	}
	ui.Error("Error: %v", err)
	var de *model.DetailedError
	if verbose && errors.As(err, &de) {
		fmt.Fprintf(ui.Output(), "%s\n", de.Stack)
	}
	var ue *model.UsageError
	if errors.As(err, &ue) {
		ui.Info("Run 'patchdir --help' for usage.")
	}
}
