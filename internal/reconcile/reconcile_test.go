package reconcile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/patchdir/internal/config"
	"github.com/sokinpui/patchdir/internal/fs"
	"github.com/sokinpui/patchdir/internal/logging"
	"github.com/sokinpui/patchdir/internal/testutil"
	"github.com/sokinpui/patchdir/internal/ui"
	"github.com/sokinpui/patchdir/model"
)

func TestMain(m *testing.M) {
	ui.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fixture struct {
	root   string
	layout *fs.Layout
}

func newFixture(t *testing.T, pristine, modified map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, filepath.Join(root, "pristine"), pristine)
	testutil.WriteTree(t, filepath.Join(root, "modified"), modified)
	layout, err := fs.NewLayout(root, config.Default())
	require.NoError(t, err)
	return &fixture{root: root, layout: layout}
}

func (f *fixture) make(t *testing.T) *model.MakeReport {
	t.Helper()
	report, err := New(f.layout, Options{Context: 3}, logging.Discard()).Make(context.Background())
	require.NoError(t, err)
	return report
}

func (f *fixture) store(t *testing.T) map[string]string {
	t.Helper()
	return testutil.ReadTree(t, f.layout.Patches)
}

func (f *fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.root}, parts...)...)
}

func TestMakeClassifiesEveryPath(t *testing.T) {
	f := newFixture(t,
		map[string]string{"same.txt": "s\n", "mod.txt": "a\n", "del.txt": "d\n"},
		map[string]string{"same.txt": "s\n", "mod.txt": "b\n", "sub/add.txt": "n\n"},
	)
	report := f.make(t)

	store := f.store(t)
	assert.ElementsMatch(t, []string{"mod.txt.patch", "del.txt.patch", "sub/add.txt.patch"}, keys(store))
	assert.True(t, strings.HasPrefix(store["sub/add.txt.patch"], "--- /dev/null\n+++ modified/sub/add.txt\n"))
	assert.True(t, strings.HasPrefix(store["del.txt.patch"], "--- pristine/del.txt\n+++ /dev/null\n"))
	assert.True(t, strings.HasPrefix(store["mod.txt.patch"], "--- pristine/mod.txt\n+++ modified/mod.txt\n"))

	assert.Equal(t, 3, report.Count(model.ActionCreate))
	assert.Equal(t, map[string]bool{"same.txt": false, "mod.txt": true, "del.txt": true, "sub/add.txt": true}, report.Kept)
}

func TestMakeIsIdempotent(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.txt": "1\n2\n3\n", "b/c.txt": "x\n"},
		map[string]string{"a.txt": "1\nTWO\n3\n", "b/c.txt": "y\n", "new.txt": "n"},
	)
	f.make(t)
	first := f.store(t)

	report := f.make(t)
	if diff := cmp.Diff(first, f.store(t)); diff != "" {
		t.Fatalf("second run changed the store (-first +second):\n%s", diff)
	}
	assert.Equal(t, 3, report.Count(model.ActionKeep))
	assert.Zero(t, report.Count(model.ActionCreate)+report.Count(model.ActionUpdate))
}

func TestMakePreservesHeader(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.txt": "one\ntwo\nthree\n"},
		map[string]string{"a.txt": "one\n2\nthree\n"},
	)
	f.make(t)

	artifact := f.layout.PatchPath("a.txt")
	body, err := os.ReadFile(artifact)
	require.NoError(t, err)
	header := "Subject: use digits\r\n\nForwarded upstream as #42.\n\n"
	testutil.WriteFile(t, artifact, header+string(body))

	// Idempotent with the hand-written header in place.
	f.make(t)
	withHeader := f.store(t)["a.txt.patch"]
	assert.Equal(t, header+string(body), withHeader)

	// The header survives a change of the underlying file.
	testutil.WriteFile(t, f.path("modified", "a.txt"), "one\n2\n3\n")
	report := f.make(t)
	assert.Equal(t, 1, report.Count(model.ActionUpdate))
	got := f.store(t)["a.txt.patch"]
	assert.True(t, strings.HasPrefix(got, header+"--- pristine/a.txt\n"), got)
	assert.Contains(t, got, "+3\n")
}

func TestMakeRemovesRevertedPatchesAndEmptyDirs(t *testing.T) {
	f := newFixture(t,
		map[string]string{"deep/er/f.txt": "orig\n", "top.txt": "t\n"},
		map[string]string{"deep/er/f.txt": "changed\n", "top.txt": "T\n"},
	)
	f.make(t)
	require.FileExists(t, f.layout.PatchPath("deep/er/f.txt"))

	testutil.WriteFile(t, f.path("modified", "deep", "er", "f.txt"), "orig\n")
	report := f.make(t)

	assert.NoFileExists(t, f.layout.PatchPath("deep/er/f.txt"))
	assert.NoDirExists(t, filepath.Join(f.layout.Patches, "deep"))
	assert.FileExists(t, f.layout.PatchPath("top.txt"))
	assert.Equal(t, 1, report.Count(model.ActionRemove))
	assert.Contains(t, report.RemovedDirs, "patch-store/deep")
}

func TestMakePrunesStaleArtifacts(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "a\n"}, map[string]string{"a": "b\n"})
	testutil.WriteFile(t, f.layout.PatchPath("gone/away.txt"), "--- pristine/gone/away.txt\n+++ modified/gone/away.txt\n")
	testutil.WriteFile(t, filepath.Join(f.layout.Patches, "README"), "not an artifact\n")

	report := f.make(t)
	assert.Equal(t, []string{"gone/away.txt"}, report.Pruned)
	assert.NoFileExists(t, f.layout.PatchPath("gone/away.txt"))
	assert.NoDirExists(t, filepath.Join(f.layout.Patches, "gone"))
	assert.FileExists(t, filepath.Join(f.layout.Patches, "README"))
}

func TestMakeExcludedPathsLoseTheirArtifacts(t *testing.T) {
	f := newFixture(t,
		map[string]string{"keep.c": "a\n", "gen/out.c": "a\n"},
		map[string]string{"keep.c": "b\n", "gen/out.c": "b\n"},
	)
	f.make(t)
	require.FileExists(t, f.layout.PatchPath("gen/out.c"))

	report, err := New(f.layout, Options{Context: 3, Exclude: []string{"gen/**"}}, logging.Discard()).Make(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gen/out.c"}, report.Pruned)
	assert.Equal(t, []string{"keep.c.patch"}, keys(f.store(t)))
}

func TestMakeFileReplacedByDirectory(t *testing.T) {
	tests := []struct {
		name               string
		pristine, modified map[string]string
		added, deleted     string
	}{
		{"dir became file", map[string]string{"a/b": "x\n"}, map[string]string{"a": "y\n"}, "a", "a/b"},
		{"file became dir", map[string]string{"a": "x\n"}, map[string]string{"a/b": "y\n"}, "a/b", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.pristine, tt.modified)
			report := f.make(t)
			assert.Equal(t, 2, report.Count(model.ActionCreate))

			store := f.store(t)
			assert.True(t, strings.HasPrefix(store[tt.added+".patch"], "--- /dev/null\n+++ modified/"+tt.added+"\n"))
			assert.True(t, strings.HasPrefix(store[tt.deleted+".patch"], "--- pristine/"+tt.deleted+"\n+++ /dev/null\n"))

			report = f.make(t)
			assert.Equal(t, 2, report.Count(model.ActionKeep))
		})
	}
}

func TestMakeWithoutModifiedTree(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, filepath.Join(root, "pristine"), map[string]string{"a": "a"})
	layout, err := fs.NewLayout(root, config.Default())
	require.NoError(t, err)

	_, err = New(layout, Options{}, logging.Discard()).Make(context.Background())
	var ue *model.UsageError
	require.ErrorAs(t, err, &ue)
	assert.NoDirExists(t, layout.Patches)
}

func TestPlanDoesNotWrite(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a": "a\n", "b": "b\n"},
		map[string]string{"a": "A\n", "b": "b\n"},
	)
	testutil.WriteFile(t, f.layout.PatchPath("b"), "stale\n")
	testutil.WriteFile(t, f.layout.PatchPath("old"), "stale\n")
	before := f.store(t)

	changes, stale, err := New(f.layout, Options{Context: 3}, logging.Discard()).Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.PathChange{
		{Path: "a", Classification: model.Modified, Action: model.ActionCreate},
		{Path: "b", Classification: model.Unchanged, Action: model.ActionRemove},
	}, changes)
	assert.Equal(t, []string{"old"}, stale)
	assert.Equal(t, before, f.store(t))
}

func TestMakeHonorsCancellation(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "a\n"}, map[string]string{"a": "b\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(f.layout, Options{Context: 3}, logging.Discard()).Make(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
