// Package testutil provides test helpers shared by the slidesmith packages:
// temporary projects and stores, figure sets, and scripted stand-ins for the
// compiler and the oracle.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/slidesmith-dev/slidesmith/internal/store"
)

// TempProject creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// Figures creates a figure directory holding placeholder files with the
// given names.
func Figures(t *testing.T, names ...string) string {
	t.Helper()
	files := make(map[string]string, len(names))
	for _, n := range names {
		files[n] = "\x89PNG placeholder"
	}
	return TempProject(t, files)
}

// NewStore opens a store in a temporary directory and closes it when the
// test finishes.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewStore(filepath.Join(dir, "slidesmith.db"), filepath.Join(dir, "sessions"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// PlanYAML is a two-slide plan with one figure, loss.png.
const PlanYAML = `title: Sparse Attention at Scale
authors: [Ada Park, Lin Wei]
slides:
  - title: Motivation
    bullets:
      - Attention cost grows quadratically
      - Long documents do not fit
  - title: Results
    bullets:
      - 3x faster training
    figures: [loss]
figures:
  - id: loss
    file: loss.png
    caption: Training loss
`
