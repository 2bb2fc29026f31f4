package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type wireProposal struct {
	Mode    *string `json:"mode"`
	OldText *string `json:"old_text"`
	NewText *string `json:"new_text"`
	Message *string `json:"message"`
	Title   *string `json:"title"`
}

var reFence = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n(.*?)\r?\n?```")

// StripCodeFences returns the body of the first Markdown code fence in s,
// or s trimmed when there is none.
func StripCodeFences(s string) string {
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// DecodeProposal parses a raw model answer to a task. Fences and text
// around the JSON object are tolerated; missing or empty required fields
// are not. Slide content may come back with no body text, since the title
// alone is a usable answer.
func DecodeProposal(task Task, raw string) (Proposal, error) {
	body := StripCodeFences(raw)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return Proposal{}, fmt.Errorf("%w: no JSON object in answer", ErrMalformed)
	}

	var w wireProposal
	if err := json.Unmarshal([]byte(body[start:end+1]), &w); err != nil {
		return Proposal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Mode == nil {
		return Proposal{}, fmt.Errorf("%w: missing mode", ErrMalformed)
	}

	p := Proposal{Mode: Mode(strings.ToLower(strings.TrimSpace(*w.Mode)))}
	if w.Message != nil {
		p.Message = *w.Message
	}
	if w.Title != nil {
		p.Title = strings.TrimSpace(*w.Title)
	}

	switch p.Mode {
	case ModePatch:
		if w.OldText == nil || *w.OldText == "" {
			return Proposal{}, fmt.Errorf("%w: patch without old_text", ErrMalformed)
		}
		if w.NewText == nil {
			return Proposal{}, fmt.Errorf("%w: patch without new_text", ErrMalformed)
		}
		p.OldText = *w.OldText
		p.NewText = *w.NewText
	case ModeFull:
		if w.NewText != nil {
			p.NewText = *w.NewText
		}
		if task != TaskSlideContent && strings.TrimSpace(p.NewText) == "" {
			return Proposal{}, fmt.Errorf("%w: full proposal without new_text", ErrMalformed)
		}
	default:
		return Proposal{}, fmt.Errorf("%w: unknown mode %q", ErrMalformed, *w.Mode)
	}
	return p, nil
}

// Lines splits slide content into trimmed non-empty lines, dropping list
// markers the model may have added.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•·")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
