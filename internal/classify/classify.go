// Package classify decides, per relative path, how the modified tree
// differs from the pristine one.
package classify

import (
	"fmt"
	"log/slog"

	"github.com/sokinpui/patchdir/internal/fs"
	"github.com/sokinpui/patchdir/model"
)

// Classify compares the pristine and modified copies of rel.
// A path present in neither tree is Unchanged.
func Classify(layout *fs.Layout, rel string) (model.Classification, error) {
	inPristine, err := fs.Exists(layout.PristinePath(rel))
	if err != nil {
		return model.Unchanged, fmt.Errorf("stat pristine %s: %w", rel, err)
	}
	inModified, err := fs.Exists(layout.ModifiedPath(rel))
	if err != nil {
		return model.Unchanged, fmt.Errorf("stat modified %s: %w", rel, err)
	}

	switch {
	case inPristine && inModified:
		same, err := fs.SameContent(layout.PristinePath(rel), layout.ModifiedPath(rel))
		if err != nil {
			return model.Unchanged, fmt.Errorf("comparing %s: %w", rel, err)
		}
		if same {
			return model.Unchanged, nil
		}
		return model.Modified, nil
	case inPristine:
		return model.Deleted, nil
	case inModified:
		return model.Added, nil
	default:
		return model.Unchanged, nil
	}
}

// Universe returns the sorted union of regular-file paths found under
// either tree.
func Universe(layout *fs.Layout, exclude []string, logger *slog.Logger) ([]string, error) {
	pristine, err := fs.ListFiles(layout.Pristine, exclude, logger)
	if err != nil {
		return nil, err
	}
	modified, err := fs.ListFiles(layout.Modified, exclude, logger)
	if err != nil {
		return nil, err
	}
	paths := fs.Union(pristine, modified)
	for i, p := range paths {
		rel, err := fs.CleanRel(p)
		if err != nil {
			return nil, err
		}
		paths[i] = rel
	}
	return paths, nil
}
