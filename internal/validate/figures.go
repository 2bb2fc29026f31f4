package validate

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
)

var reIncludeGraphics = regexp.MustCompile(`\\includegraphics\s*(?:\[[^\]]*\])?\s*\{([^}]+)\}`)

// imageExtensions are tried, in graphicx order, for references without one.
var imageExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".eps"}

// FigureRefs returns every \includegraphics path in text, in order.
func FigureRefs(text string) []string {
	var refs []string
	for _, m := range reIncludeGraphics.FindAllStringSubmatch(text, -1) {
		refs = append(refs, strings.TrimSpace(m[1]))
	}
	return refs
}

// CheckFigures verifies that every figure referenced by text is a file in
// the figure set, addressed as images/<file>. It returns a description of
// each unresolved reference.
func CheckFigures(text, figureDir string) ([]string, error) {
	refs := FigureRefs(text)
	if len(refs) == 0 {
		return nil, nil
	}

	available := map[string]bool{}
	if figureDir != "" {
		entries, err := os.ReadDir(figureDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading figure dir: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				available[e.Name()] = true
			}
		}
	}

	var missing []string
	for _, ref := range refs {
		dir, file := path.Split(path.Clean(ref))
		if dir != "images/" {
			missing = append(missing, fmt.Sprintf("%s: figures must be referenced as images/<file>", ref))
			continue
		}
		if !resolves(file, available) {
			missing = append(missing, fmt.Sprintf("%s: not in the figure set", ref))
		}
	}
	return missing, nil
}

func resolves(file string, available map[string]bool) bool {
	if available[file] {
		return true
	}
	if path.Ext(file) != "" {
		return false
	}
	for _, ext := range imageExtensions {
		if available[file+ext] {
			return true
		}
	}
	return false
}
