package oracle

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/slidesmith-dev/slidesmith/prompts"
)

var templates = func() map[Task]*template.Template {
	funcs := template.FuncMap{"inc": func(i int) int { return i + 1 }}
	return map[Task]*template.Template{
		TaskSlideContent: template.Must(template.New("content").Funcs(funcs).Parse(prompts.ContentTemplate)),
		TaskRepair:       template.Must(template.New("repair").Funcs(funcs).Parse(prompts.RepairTemplate)),
		TaskRevise:       template.Must(template.New("revise").Funcs(funcs).Parse(prompts.ReviseTemplate)),
	}
}()

// RenderPrompt returns the system and user prompts for req.
func RenderPrompt(req Request) (system, user string, err error) {
	tmpl, ok := templates[req.Task]
	if !ok {
		return "", "", fmt.Errorf("unknown oracle task %q", req.Task)
	}
	if req.Task == TaskSlideContent && req.Slide == nil {
		return "", "", fmt.Errorf("slide content request without a slide")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, req); err != nil {
		return "", "", fmt.Errorf("rendering %s prompt: %w", req.Task, err)
	}
	return prompts.OracleSystemPrompt, buf.String(), nil
}
