package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/patchdir/cli"
	"github.com/sokinpui/patchdir/internal/testutil"
	"github.com/sokinpui/patchdir/internal/ui"
	"github.com/sokinpui/patchdir/model"
)

func TestMain(m *testing.M) {
	ui.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func execute(args ...string) error {
	cmd := newRootCmd(&cli.Config{})
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

func TestCommands(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, filepath.Join(root, "pristine"), map[string]string{"a.txt": "a\n"})
	testutil.WriteTree(t, filepath.Join(root, "modified"), map[string]string{"a.txt": "A\n"})

	require.NoError(t, execute("make", root))
	assert.FileExists(t, filepath.Join(root, "patch-store", "a.txt.patch"))

	require.NoError(t, execute("status", "--no-color", root))
	require.NoError(t, execute("-a", root))
	require.NoError(t, execute("apply", "--applier", "native", "--fuzz", "0", root))

	testutil.WriteFile(t, filepath.Join(root, "pristine", "a.txt"), "z\n")
	err := execute("apply", root)
	assert.Equal(t, model.ExitRejects, model.ExitCode(err))
	assert.FileExists(t, filepath.Join(root, "reject-store", "a.txt.rej"))

	// -m regenerates against the diverged pristine tree.
	testutil.WriteFile(t, filepath.Join(root, "modified", "a.txt"), "z\nmore\n")
	require.NoError(t, execute("-m", root))
	require.NoError(t, execute("apply", root))
}

func TestUsageExitCodes(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, filepath.Join(root, "pristine"), map[string]string{"a": "a"})

	for name, args := range map[string][]string{
		"no mode":        {root},
		"both modes":     {"-m", "-a", root},
		"unknown flag":   {"make", "--frobnicate", root},
		"bad fuzz":       {"apply", "--fuzz=-1", root},
		"too many roots": {"apply", root, root},
		"missing root":   {"apply", filepath.Join(root, "nope")},
	} {
		t.Run(name, func(t *testing.T) {
			err := execute(args...)
			require.Error(t, err)
			assert.Equal(t, model.ExitUsage, model.ExitCode(err), err.Error())
		})
	}
}
