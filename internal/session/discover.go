package session

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/behaviorlab/framereview/pkg/util"
)

// defaultExtensions are the container types eligible for review when the
// caller does not supply its own list.
var defaultExtensions = []string{".avi", ".mp4", ".mov", ".mkv"}

// Discover walks the input folder recursively and returns all eligible videos
// sorted lexicographically by path. The sort makes discovery deterministic so
// that the one-time shuffle at session creation is the only source of
// randomness. Duplicate identities (same filename stem in two folders) are a
// configuration error: the stem is the key for mark files and must be unique.
func Discover(input string, extensions []string) ([]Item, error) {
	if input == "" {
		return nil, nil
	}
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	eligible := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		eligible[strings.ToLower(ext)] = true
	}

	var paths []string
	err := filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if eligible[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan input folder: %w", err)
	}

	sort.Strings(paths)

	seen := make(map[string]string, len(paths))
	items := make([]Item, 0, len(paths))
	for _, p := range paths {
		stem := util.Stem(p)
		if prev, ok := seen[stem]; ok {
			return nil, fmt.Errorf("duplicate video identity %q: %s and %s", stem, prev, p)
		}
		seen[stem] = p

		rel := ""
		if r, err := filepath.Rel(input, p); err == nil && !strings.HasPrefix(r, "..") {
			rel = filepath.ToSlash(r)
		}
		items = append(items, Item{
			Identity:     stem,
			SourcePath:   p,
			RelativePath: rel,
		})
	}

	return items, nil
}
