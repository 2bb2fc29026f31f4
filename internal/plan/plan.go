// Package plan defines the presentation plan handed to the generator and
// loads it from JSON or YAML files.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slidesmith-dev/slidesmith/internal/deck"
)

// Plan is an ordered list of slides plus the figures they may reference.
// A plan is not modified once generation starts.
type Plan struct {
	Title    string   `yaml:"title" json:"title"`
	Subtitle string   `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	Authors  []string `yaml:"authors,omitempty" json:"authors,omitempty"`
	Date     string   `yaml:"date,omitempty" json:"date,omitempty"`
	Slides   []Slide  `yaml:"slides" json:"slides"`
	Figures  []Figure `yaml:"figures,omitempty" json:"figures,omitempty"`
}

// Slide is one planned slide. Bullets are used verbatim when present;
// Points are loose talking points the oracle expands into bullets.
type Slide struct {
	Number  int      `yaml:"number,omitempty" json:"number,omitempty"`
	Title   string   `yaml:"title" json:"title"`
	Bullets []string `yaml:"bullets,omitempty" json:"bullets,omitempty"`
	Points  []string `yaml:"points,omitempty" json:"points,omitempty"`
	Figures []string `yaml:"figures,omitempty" json:"figures,omitempty"`
	Notes   string   `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Figure maps a figure id to a file in the session figure set.
type Figure struct {
	ID      string `yaml:"id" json:"id"`
	File    string `yaml:"file" json:"file"`
	Caption string `yaml:"caption,omitempty" json:"caption,omitempty"`
}

// Load reads a plan from path. Both .json and .yaml files are accepted;
// JSON is parsed by the YAML decoder.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a plan document.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// normalize numbers slides 1..n in plan order when numbers are missing.
func (p *Plan) normalize() {
	for i := range p.Slides {
		if p.Slides[i].Number == 0 {
			p.Slides[i].Number = i + 1
		}
	}
}

// Validate checks the plan's internal consistency. It does not look at the
// filesystem; see ResolveFigures for that.
func (p *Plan) Validate() error {
	if len(p.Slides) == 0 {
		return fmt.Errorf("plan has no slides")
	}
	ids := make(map[string]bool, len(p.Figures))
	for _, f := range p.Figures {
		if f.ID == "" || f.File == "" {
			return fmt.Errorf("figure entries need both id and file (got id=%q file=%q)", f.ID, f.File)
		}
		if ids[f.ID] {
			return fmt.Errorf("duplicate figure id %q", f.ID)
		}
		ids[f.ID] = true
	}
	seen := make(map[int]bool, len(p.Slides))
	for _, s := range p.Slides {
		if seen[s.Number] {
			return fmt.Errorf("duplicate slide number %d", s.Number)
		}
		seen[s.Number] = true
	}
	return nil
}

// Figure returns the figure with the given id.
func (p *Plan) Figure(id string) (Figure, bool) {
	for _, f := range p.Figures {
		if f.ID == id {
			return f, true
		}
	}
	return Figure{}, false
}

// ResolveFigures checks every figure a slide references against the plan's
// figure table and the files in figureDir. Unknown ids and absent files are
// reported together as a MissingFigure error.
func (p *Plan) ResolveFigures(figureDir string) error {
	var missing []string
	for _, s := range p.Slides {
		for _, id := range s.Figures {
			f, ok := p.Figure(id)
			if !ok {
				missing = append(missing, fmt.Sprintf("slide %d: unknown figure id %q", s.Number, id))
				continue
			}
			info, err := os.Stat(filepath.Join(figureDir, f.File))
			if err != nil || info.IsDir() {
				missing = append(missing, fmt.Sprintf("slide %d: figure %q file %s not found", s.Number, id, f.File))
			}
		}
	}
	if len(missing) > 0 {
		return deck.Errorf(deck.ErrMissingFigure, -1, "%s", strings.Join(missing, "; "))
	}
	return nil
}

// JSON returns the plan as JSON for storage alongside a session.
func (p *Plan) JSON() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshalling plan: %w", err)
	}
	return data, nil
}

// FromJSON decodes a plan previously produced by JSON.
func FromJSON(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding stored plan: %w", err)
	}
	return &p, nil
}

// Summary renders a compact outline of the plan for oracle prompts.
func (p *Plan) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	for _, s := range p.Slides {
		fmt.Fprintf(&b, "%d. %s\n", s.Number, s.Title)
		for _, bl := range s.Bullets {
			fmt.Fprintf(&b, "   - %s\n", bl)
		}
		for _, pt := range s.Points {
			fmt.Fprintf(&b, "   * %s\n", pt)
		}
		for _, id := range s.Figures {
			fmt.Fprintf(&b, "   [figure %s]\n", id)
		}
	}
	return b.String()
}
