// Package batch - scores every matching image under a directory and collects
// the scores for CSV export.
package batch

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-emboss/images"
)

// Scan walks root recursively and returns the files whose extension matches
// one of exts, ignoring case, sorted by path.
//
// Arguments:
//   - root: Directory to walk.
//   - exts: Extensions including the dot, e.g. ".JPG".
//
// Returns:
//   - []string: Matching file paths.
//   - error: Error if the walk fails.
func Scan(root string, exts []string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if images.HasExtension(path, exts) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", root)
	}

	sort.Strings(paths)
	return paths, nil
}
