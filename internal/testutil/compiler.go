package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/slidesmith-dev/slidesmith/internal/compiler"
)

// Compiler is a scripted compiler.Compiler. Fn decides each result; the
// default succeeds. Every job is recorded.
type Compiler struct {
	Fn func(job compiler.Job) compiler.Result

	mu   sync.Mutex
	jobs []compiler.Job
}

// FailWhenContains returns a compiler that fails, with an undefined control
// sequence diagnostic, on any source containing one of the markers.
func FailWhenContains(markers ...string) *Compiler {
	return &Compiler{Fn: func(job compiler.Job) compiler.Result {
		for _, m := range markers {
			if strings.Contains(job.Text, m) {
				return compiler.Result{Diagnostics: "! Undefined control sequence.\nl.1 " + m + "\n"}
			}
		}
		return compiler.Result{OK: true}
	}}
}

// AlwaysFail returns a compiler that fails every job with diag.
func AlwaysFail(diag string) *Compiler {
	return &Compiler{Fn: func(compiler.Job) compiler.Result {
		return compiler.Result{Diagnostics: diag}
	}}
}

// Compile records job and returns the scripted result. The workdir is
// always created, as the real adapter does; successful results also get a
// PDF written into it.
func (c *Compiler) Compile(ctx context.Context, job compiler.Job) (compiler.Result, error) {
	if err := ctx.Err(); err != nil {
		return compiler.Result{}, err
	}
	c.mu.Lock()
	c.jobs = append(c.jobs, job)
	c.mu.Unlock()

	if err := os.MkdirAll(job.WorkDir, 0755); err != nil {
		return compiler.Result{}, err
	}
	res := compiler.Result{OK: true}
	if c.Fn != nil {
		res = c.Fn(job)
	}
	if res.OK {
		res.OutputPath = filepath.Join(job.WorkDir, "deck.pdf")
		if err := os.WriteFile(res.OutputPath, []byte("%PDF-1.5"), 0644); err != nil {
			return compiler.Result{}, err
		}
	}
	return res, nil
}

// Calls returns how many jobs were compiled.
func (c *Compiler) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// Jobs returns a copy of the recorded jobs.
func (c *Compiler) Jobs() []compiler.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]compiler.Job(nil), c.jobs...)
}
