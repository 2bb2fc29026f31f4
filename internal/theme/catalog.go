// Package theme exposes the read-only catalog of Beamer themes and language
// profiles that generated decks may use.
package theme

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

//go:embed content/catalog.toml
var catalogTOML string

// Language identifies the deck language.
type Language string

const (
	English Language = "en"
	Chinese Language = "zh"
)

// Theme is one Beamer theme entry.
type Theme struct {
	Name        string `toml:"name"`
	ColorTheme  string `toml:"color_theme"`
	Description string `toml:"description"`
}

// Profile describes how decks in one language are typeset.
type Profile struct {
	Code     Language `toml:"code"`
	Engine   string   `toml:"engine"`
	TOCTitle string   `toml:"toc_title"`
	Preamble []string `toml:"preamble"`
}

// CaptionLimits are the rune thresholds between short, medium and long
// captions.
type CaptionLimits struct {
	Short  int `toml:"short"`
	Medium int `toml:"medium"`
}

// Catalog is the parsed catalog.toml.
type Catalog struct {
	DefaultTheme    string        `toml:"default_theme"`
	DefaultLanguage Language      `toml:"default_language"`
	Themes          []Theme       `toml:"themes"`
	Languages       []Profile     `toml:"languages"`
	Captions        CaptionLimits `toml:"captions"`
}

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Default returns the embedded catalog, parsed once.
func Default() (*Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse([]byte(catalogTOML))
	})
	return loaded, loadErr
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing theme catalog: %w", err)
	}
	if len(c.Themes) == 0 {
		return nil, fmt.Errorf("theme catalog has no themes")
	}
	if len(c.Languages) == 0 {
		return nil, fmt.Errorf("theme catalog has no languages")
	}
	return &c, nil
}

// Theme looks up a theme by name, case-insensitively. An empty name
// returns the default theme.
func (c *Catalog) Theme(name string) (Theme, error) {
	if name == "" {
		name = c.DefaultTheme
	}
	for _, t := range c.Themes {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return Theme{}, fmt.Errorf("unknown theme %q (available: %s)", name, strings.Join(c.ThemeNames(), ", "))
}

// Profile looks up a language profile. An empty code returns the default
// language.
func (c *Catalog) Profile(code Language) (Profile, error) {
	if code == "" {
		code = c.DefaultLanguage
	}
	for _, p := range c.Languages {
		if p.Code == code {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("unsupported language %q", code)
}

// ThemeNames returns the theme names in catalog order.
func (c *Catalog) ThemeNames() []string {
	names := make([]string, len(c.Themes))
	for i, t := range c.Themes {
		names[i] = t.Name
	}
	return names
}

// LanguageCodes returns the supported language codes, sorted.
func (c *Catalog) LanguageCodes() []string {
	codes := make([]string, len(c.Languages))
	for i, p := range c.Languages {
		codes[i] = string(p.Code)
	}
	sort.Strings(codes)
	return codes
}

// CaptionLength classifies a caption as "short", "medium" or "long".
func (c *Catalog) CaptionLength(caption string) string {
	n := len([]rune(caption))
	switch {
	case n < c.Captions.Short:
		return "short"
	case n < c.Captions.Medium:
		return "medium"
	default:
		return "long"
	}
}
