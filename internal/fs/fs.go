package fs

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sokinpui/patchdir/internal/config"
	"github.com/sokinpui/patchdir/model"
)

// Layout resolves the four sub-trees of a working root.
type Layout struct {
	Root     string
	Pristine string
	Modified string
	Patches  string
	Rejects  string

	PatchSuffix  string
	RejectSuffix string

	dirs config.Dirs
}

// NewLayout validates root and returns its layout. The root and its
// pristine tree must already exist.
func NewLayout(root string, cfg config.Config) (*Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &model.UsageError{Msg: fmt.Sprintf("invalid working root %q", root), Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &model.UsageError{Msg: fmt.Sprintf("working root %s", abs), Err: err}
	}
	if !info.IsDir() {
		return nil, model.Usagef("working root %s is not a directory", abs)
	}

	l := &Layout{
		Root:         abs,
		Pristine:     filepath.Join(abs, cfg.Dirs.Pristine),
		Modified:     filepath.Join(abs, cfg.Dirs.Modified),
		Patches:      filepath.Join(abs, cfg.Dirs.Patches),
		Rejects:      filepath.Join(abs, cfg.Dirs.Rejects),
		PatchSuffix:  cfg.Suffix.Patch,
		RejectSuffix: cfg.Suffix.Reject,
		dirs:         cfg.Dirs,
	}
	info, err = os.Stat(l.Pristine)
	if err != nil {
		return nil, &model.UsageError{Msg: fmt.Sprintf("working root %s has no %s tree", abs, cfg.Dirs.Pristine), Err: err}
	}
	if !info.IsDir() {
		return nil, model.Usagef("%s is not a directory", l.Pristine)
	}
	return l, nil
}

// PristineName is the directory name used for the pristine side in diffs.
func (l *Layout) PristineName() string { return l.dirs.Pristine }

// ModifiedName is the directory name used for the modified side in diffs.
func (l *Layout) ModifiedName() string { return l.dirs.Modified }

// PatchPath returns the artifact path of a relative path.
func (l *Layout) PatchPath(rel string) string {
	return filepath.Join(l.Patches, filepath.FromSlash(rel)+l.PatchSuffix)
}

// RejectPath returns the reject artifact path of a relative path.
func (l *Layout) RejectPath(rel string) string {
	return filepath.Join(l.Rejects, filepath.FromSlash(rel)+l.RejectSuffix)
}

// PristinePath returns the pristine copy of a relative path.
func (l *Layout) PristinePath(rel string) string {
	return filepath.Join(l.Pristine, filepath.FromSlash(rel))
}

// ModifiedPath returns the modified copy of a relative path.
func (l *Layout) ModifiedPath(rel string) string {
	return filepath.Join(l.Modified, filepath.FromSlash(rel))
}

// Display returns p relative to the working root for status lines.
func (l *Layout) Display(p string) string {
	rel, err := filepath.Rel(l.Root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// CleanRel normalizes a slash-separated relative path: it strips any
// leading "./" and rejects paths that escape their tree.
func CleanRel(rel string) (string, error) {
	rel = filepath.ToSlash(rel)
	for strings.HasPrefix(rel, "./") {
		rel = strings.TrimPrefix(rel, "./")
	}
	if rel == "" {
		return "", fmt.Errorf("empty relative path")
	}
	if path.IsAbs(rel) {
		return "", fmt.Errorf("absolute path %q", rel)
	}
	cleaned := path.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes its tree", rel)
	}
	return cleaned, nil
}
