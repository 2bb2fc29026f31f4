// Package cleanup prunes compile work directories that no published
// revision points at.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// revDirPrefix names the per-revision directories under a builds dir.
const revDirPrefix = "rev-"

// PruneBuilds removes the work directories under buildsDir
// (rev-NNN/attempt-K and rev-NNN/recheck) except those listed in keep,
// which are absolute or buildsDir-relative paths. Revision directories left
// empty are removed too. If dryRun is true, nothing is deleted. Returns the
// pruned paths relative to buildsDir, sorted.
func PruneBuilds(buildsDir string, keep []string, dryRun bool) ([]string, error) {
	revs, err := os.ReadDir(buildsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading builds directory: %w", err)
	}

	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		if filepath.IsAbs(k) {
			rel, relErr := filepath.Rel(buildsDir, k)
			if relErr != nil {
				continue
			}
			k = rel
		}
		kept[filepath.Clean(k)] = true
	}

	var pruned []string
	for _, rev := range revs {
		if !rev.IsDir() || !strings.HasPrefix(rev.Name(), revDirPrefix) {
			continue
		}
		revPath := filepath.Join(buildsDir, rev.Name())
		work, readErr := os.ReadDir(revPath)
		if readErr != nil {
			return pruned, fmt.Errorf("reading %s: %w", rev.Name(), readErr)
		}

		remaining := len(work)
		for _, w := range work {
			if !w.IsDir() {
				continue
			}
			rel := filepath.Join(rev.Name(), w.Name())
			if kept[rel] {
				continue
			}
			if !dryRun {
				if rmErr := os.RemoveAll(filepath.Join(buildsDir, rel)); rmErr != nil {
					return pruned, fmt.Errorf("removing %s: %w", rel, rmErr)
				}
			}
			pruned = append(pruned, rel)
			remaining--
		}

		if remaining == 0 && !dryRun {
			if rmErr := os.Remove(revPath); rmErr != nil {
				return pruned, fmt.Errorf("removing %s: %w", rev.Name(), rmErr)
			}
		}
	}

	sort.Strings(pruned)
	return pruned, nil
}
