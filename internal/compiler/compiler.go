// Package compiler runs a LaTeX engine over a deck source in an isolated
// working directory and reports whether it produced a PDF.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
)

// SourceName is the file name the deck source is written to in the workdir.
const SourceName = "deck.tex"

// maxDiagnosticBytes caps how much engine output is kept per attempt.
const maxDiagnosticBytes = 32 * 1024

// Job is one compile request.
type Job struct {
	Text      string
	WorkDir   string // created if missing; figures are copied to WorkDir/images
	FigureDir string
	Engine    string // engine binary, e.g. "pdflatex"
}

// Result is the outcome of a compile. A failed compile is a Result with
// OK false, not an error.
type Result struct {
	OK          bool
	Diagnostics string
	OutputPath  string
	Duration    time.Duration
	TimedOut    bool
}

// Compiler turns deck source into a PDF.
type Compiler interface {
	Compile(ctx context.Context, job Job) (Result, error)
}

// Options configures a LaTeX compiler.
type Options struct {
	Timeout     time.Duration // per Compile call, all passes included
	Passes      int           // engine runs per compile; extra passes settle the TOC
	MaxParallel int64         // concurrent engine processes across all sessions
	Logger      *slog.Logger
}

// LaTeX is the Compiler backed by a local TeX installation.
type LaTeX struct {
	timeout time.Duration
	passes  int
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

// New returns a LaTeX compiler with defaults filled in.
func New(opts Options) *LaTeX {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Passes <= 0 {
		opts.Passes = 1
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LaTeX{
		timeout: opts.Timeout,
		passes:  opts.Passes,
		sem:     semaphore.NewWeighted(opts.MaxParallel),
		logger:  opts.Logger,
	}
}

// Compile writes the source and figures into job.WorkDir and runs the
// engine. It returns an error only when the adapter itself fails (workdir
// not writable, engine missing, caller context done).
func (c *LaTeX) Compile(ctx context.Context, job Job) (Result, error) {
	if job.Engine == "" {
		return Result{}, fmt.Errorf("no engine configured")
	}
	if err := prepareWorkDir(job); err != nil {
		return Result{}, err
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("waiting for compile slot: %w", err)
	}
	defer c.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	pdf := filepath.Join(job.WorkDir, "deck.pdf")

	for pass := 1; pass <= c.passes; pass++ {
		output, err := c.run(runCtx, job)
		if err != nil {
			// Caller cancellation is not a compile failure.
			if ctx.Err() != nil {
				return Result{}, fmt.Errorf("compile canceled: %w", ctx.Err())
			}
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				return Result{
					Diagnostics: fmt.Sprintf("compile timed out after %s\n%s", c.timeout, tail(output)),
					Duration:    time.Since(start),
					TimedOut:    true,
				}, nil
			}
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return Result{}, fmt.Errorf("running %s: %w", job.Engine, err)
			}
			if pass > 1 && fileExists(pdf) {
				// An earlier pass already produced the PDF.
				c.logger.Warn("later engine pass failed, keeping earlier output", "pass", pass, "workdir", job.WorkDir)
				break
			}
			return Result{
				Diagnostics: tail(output),
				Duration:    time.Since(start),
			}, nil
		}
		if !fileExists(pdf) {
			return Result{
				Diagnostics: "engine exited cleanly but produced no PDF\n" + tail(output),
				Duration:    time.Since(start),
			}, nil
		}
	}

	c.logger.Debug("compiled", "engine", job.Engine, "workdir", job.WorkDir, "duration", time.Since(start))
	return Result{OK: true, OutputPath: pdf, Duration: time.Since(start)}, nil
}

// run executes a single engine pass and returns its combined output.
func (c *LaTeX) run(ctx context.Context, job Job) (string, error) {
	cmd := exec.CommandContext(ctx, job.Engine,
		"-interaction=nonstopmode",
		"-halt-on-error",
		SourceName,
	)
	cmd.Dir = job.WorkDir
	cmd.WaitDelay = 5 * time.Second

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	return buf.String(), err
}

// prepareWorkDir writes the source file and copies the figure set into
// WorkDir/images so \includegraphics{images/...} resolves.
func prepareWorkDir(job Job) error {
	if err := os.MkdirAll(job.WorkDir, 0755); err != nil {
		return fmt.Errorf("creating workdir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(job.WorkDir, SourceName), []byte(job.Text), 0644); err != nil {
		return fmt.Errorf("writing source: %w", err)
	}
	if job.FigureDir == "" {
		return nil
	}

	entries, err := os.ReadDir(job.FigureDir)
	if err != nil {
		return fmt.Errorf("reading figure dir: %w", err)
	}
	imagesDir := filepath.Join(job.WorkDir, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return fmt.Errorf("creating images dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(job.FigureDir, e.Name()), filepath.Join(imagesDir, e.Name())); err != nil {
			return fmt.Errorf("copying figure %s: %w", e.Name(), err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// tail keeps the end of long engine output, where the error usually is.
func tail(s string) string {
	if len(s) <= maxDiagnosticBytes {
		return s
	}
	cut := len(s) - maxDiagnosticBytes
	// Never start in the middle of a multi-byte rune.
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "[output truncated]\n" + s[cut:]
}
