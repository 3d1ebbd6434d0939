package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
)

// ListFiles returns the sorted slash-separated paths of every regular file
// under dir. A missing dir yields an empty list. Paths matching one of the
// exclude globs are skipped, as are non-regular entries.
func ListFiles(dir string, exclude []string, logger *slog.Logger) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			if p == dir && errors.Is(err, iofs.ErrNotExist) {
				return iofs.SkipAll
			}
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if Excluded(rel, exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			if logger != nil {
				logger.Debug("skipping non-regular file", "path", p, "type", d.Type().String())
			}
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Excluded reports whether rel matches any of the glob patterns.
func Excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Union merges sorted path lists into one sorted list without duplicates.
func Union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// ErrNotRegular is returned when a path that should hold a file is taken
// by a directory or another non-regular entry, or when one of its parents
// is a file.
var ErrNotRegular = errors.New("not a regular file")

// Exists reports whether p names a regular file.
func Exists(p string) (bool, error) {
	info, err := os.Stat(p)
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if errors.Is(err, iofs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return false, nil
	}
	return false, err
}

// ReadOptional returns the content of p, or nil and false when p does not
// exist.
func ReadOptional(p string) ([]byte, bool, error) {
	data, err := os.ReadFile(p)
	if err == nil {
		return data, true, nil
	}
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, false, nil
	}
	return nil, false, err
}

// ReadRegular is ReadOptional for paths that may be shadowed: it returns
// ErrNotRegular instead of reading anything but a regular file.
func ReadRegular(p string) ([]byte, bool, error) {
	info, err := os.Lstat(p)
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return nil, false, nil
	case errors.Is(err, syscall.ENOTDIR):
		return nil, false, ErrNotRegular
	case err != nil:
		return nil, false, err
	case !info.Mode().IsRegular():
		return nil, false, ErrNotRegular
	}
	return ReadOptional(p)
}

const compareChunk = 32 * 1024

// SameContent compares two files byte for byte.
func SameContent(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	ia, err := fa.Stat()
	if err != nil {
		return false, err
	}
	ib, err := fb.Stat()
	if err != nil {
		return false, err
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	bufA := make([]byte, compareChunk)
	bufB := make([]byte, compareChunk)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		doneA := errors.Is(errA, io.EOF) || errors.Is(errA, io.ErrUnexpectedEOF)
		doneB := errors.Is(errB, io.EOF) || errors.Is(errB, io.ErrUnexpectedEOF)
		if errA != nil && !doneA {
			return false, errA
		}
		if errB != nil && !doneB {
			return false, errB
		}
		if doneA || doneB {
			return doneA && doneB, nil
		}
	}
}

// TrimSuffixPaths strips suffix from every path that carries it and drops
// the rest.
func TrimSuffixPaths(paths []string, suffix string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) && len(p) > len(suffix) {
			out = append(out, strings.TrimSuffix(p, suffix))
		}
	}
	return out
}
