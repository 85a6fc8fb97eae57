package document

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// supportedExts are the extensions List will return.
var supportedExts = map[string]bool{
	".pdf":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// List walks root and returns the supported document paths under it,
// sorted for deterministic ingestion order. Exclude patterns are matched
// against both the slash-separated relative path and the basename.
func List(root string, exclude []string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !supportedExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if excluded(relPath, exclude) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

func excluded(relPath string, patterns []string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, filepath.Base(relPath)); matched {
			return true
		}
	}
	return false
}
