// Package walker enumerates candidate artifact files inside the input folder.
package walker

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Options control the collection pass.
type Options struct {
	// Recursive descends into subdirectories of the input folder.
	Recursive bool
	// Extensions keeps only files carrying one of these suffixes, compared
	// case-insensitively. Empty keeps every regular file.
	Extensions []string
}

// Collect returns the sorted candidate files inside dir. Only regular files
// are returned; symlinks, devices and subdirectory entries are ignored.
func Collect(dir string, opts Options) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !matchExt(path, opts.Extensions) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func matchExt(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	got := filepath.Ext(path)
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.EqualFold(got, e) {
			return true
		}
	}
	return false
}
