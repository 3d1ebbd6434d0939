package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sokinpui/patchdir/cli"
	"github.com/sokinpui/patchdir/internal/ui"
	"github.com/sokinpui/patchdir/model"
)

func main() {
	ui.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &cli.Config{}
	err := newRootCmd(cfg).ExecuteContext(ctx)
	if err != nil {
		report(err, cfg.Verbose)
	}
	stop()
	os.Exit(model.ExitCode(err))
}
