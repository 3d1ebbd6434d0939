package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/patchdir/internal/config"
	"github.com/sokinpui/patchdir/internal/testutil"
	"github.com/sokinpui/patchdir/model"
)

func TestNewLayout(t *testing.T) {
	root := t.TempDir()

	_, err := NewLayout(root, config.Default())
	var ue *model.UsageError
	require.ErrorAs(t, err, &ue, "missing pristine tree")

	_, err = NewLayout(filepath.Join(root, "nope"), config.Default())
	require.ErrorAs(t, err, &ue, "missing root")

	testutil.WriteFile(t, filepath.Join(root, "pristine", "a", "b.txt"), "x")
	l, err := NewLayout(root, config.Default())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "patch-store", "a", "b.txt.patch"), l.PatchPath("a/b.txt"))
	assert.Equal(t, filepath.Join(root, "reject-store", "a", "b.txt.rej"), l.RejectPath("a/b.txt"))
	assert.Equal(t, "patch-store/a/b.txt.patch", l.Display(l.PatchPath("a/b.txt")))
	assert.Equal(t, "pristine", l.PristineName())
	assert.Equal(t, "modified", l.ModifiedName())
}

func TestNewLayoutPristineIsFile(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "pristine"), "not a dir")
	_, err := NewLayout(root, config.Default())
	var ue *model.UsageError
	require.ErrorAs(t, err, &ue)
}

func TestCleanRel(t *testing.T) {
	got, err := CleanRel("./././a/./b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", got)

	for _, bad := range []string{"", "../x", "a/../../x", "/etc/passwd"} {
		_, err := CleanRel(bad)
		assert.Error(t, err, bad)
	}
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"b.txt":           "b",
		"a/z.go":          "z",
		"a/deep/y.go":     "y",
		"vendor/x/lib.go": "v",
		"build/out.o":     "o",
	})
	require.NoError(t, os.Symlink("b.txt", filepath.Join(root, "link")))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	files, err := ListFiles(root, []string{"vendor/**", "**/*.o"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/deep/y.go", "a/z.go", "b.txt"}, files)

	files, err = ListFiles(filepath.Join(root, "missing"), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUnion(t *testing.T) {
	got := Union([]string{"a", "c"}, []string{"b", "c"}, nil)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestSameContent(t *testing.T) {
	dir := t.TempDir()
	big := strings.Repeat("0123456789", 20000)
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		testutil.WriteFile(t, p, content)
		return p
	}
	a := write("a", big)
	b := write("b", big)
	c := write("c", big[:len(big)-1]+"X")
	d := write("d", big+"tail")
	e1 := write("e1", "")
	e2 := write("e2", "")

	for _, tt := range []struct {
		x, y string
		want bool
	}{
		{a, b, true},
		{a, c, false},
		{a, d, false},
		{e1, e2, true},
		{e1, a, false},
	} {
		got, err := SameContent(tt.x, tt.y)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", filepath.Base(tt.x), filepath.Base(tt.y))
	}
}

func TestTrimSuffixPaths(t *testing.T) {
	got := TrimSuffixPaths([]string{"a.txt.patch", "notes.md", ".patch", "d/e.patch"}, ".patch")
	assert.Equal(t, []string{"a.txt", "d/e"}, got)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sub", "f.patch")

	require.NoError(t, WriteFileAtomic(p, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(p, []byte("two"), 0o600))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriteFileAtomicFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	// Renaming a file over a directory fails after the temp file exists.
	target := filepath.Join(dir, "taken")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0o755))

	require.Error(t, WriteFileAtomic(target, []byte("x"), 0o644))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "taken", entries[0].Name())
}

func TestRemoveFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, RemoveFile(p))
	testutil.WriteFile(t, p, "x")
	require.NoError(t, RemoveFile(p))
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))
}

func TestReadRegular(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "file"), "x")
	testutil.WriteFile(t, filepath.Join(root, "dir", "child"), "y")

	data, ok, err := ReadRegular(filepath.Join(root, "file"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", string(data))

	_, ok, err = ReadRegular(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ReadRegular(filepath.Join(root, "dir"))
	assert.ErrorIs(t, err, ErrNotRegular, "directory")
	_, _, err = ReadRegular(filepath.Join(root, "file", "under"))
	assert.ErrorIs(t, err, ErrNotRegular, "parent is a file")

	ok, err = Exists(filepath.Join(root, "file", "under"))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = Exists(filepath.Join(root, "dir"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveEmptyParents(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0o755))
	testutil.WriteFile(t, filepath.Join(root, "a", "keep"), "k")

	require.NoError(t, RemoveEmptyParents(filepath.Join(root, "a", "b", "c", "gone"), root))
	assert.NoDirExists(t, filepath.Join(root, "a", "b"))
	assert.DirExists(t, filepath.Join(root, "a"))

	require.NoError(t, os.Remove(filepath.Join(root, "a", "keep")))
	require.NoError(t, RemoveEmptyParents(filepath.Join(root, "a", "keep"), root))
	assert.NoDirExists(t, filepath.Join(root, "a"))
	assert.DirExists(t, root)
}

func TestPruneEmptyDirs(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "keep", "f"), "x")
	for _, d := range []string{"a/b/c", "keep/empty", "x"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755))
	}

	removed, err := PruneEmptyDirs(root)
	require.NoError(t, err)
	want := []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "b"),
		filepath.Join(root, "a", "b", "c"),
		filepath.Join(root, "keep", "empty"),
		filepath.Join(root, "x"),
	}
	assert.Equal(t, want, removed)
	assert.DirExists(t, root)
	assert.FileExists(t, filepath.Join(root, "keep", "f"))

	removed, err = PruneEmptyDirs(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestReplaceTree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "pristine")
	dst := filepath.Join(root, "modified")
	testutil.WriteTree(t, src, map[string]string{
		"a.txt":     "a",
		"d/e/f.txt": "f",
	})
	require.NoError(t, os.Chmod(filepath.Join(src, "a.txt"), 0o755))
	testutil.WriteTree(t, dst, map[string]string{
		"a.txt":     "stale",
		"extra.txt": "gone after rebuild",
	})

	require.NoError(t, ReplaceTree(src, dst))
	if diff := cmp.Diff(testutil.ReadTree(t, src), testutil.ReadTree(t, dst)); diff != "" {
		t.Errorf("rebuilt tree mismatch (-want +got):\n%s", diff)
	}
	info, err := os.Stat(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}
