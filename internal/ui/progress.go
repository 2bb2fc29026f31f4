// Package ui provides terminal output helpers for slidesmith commands.
// This file implements the progress line shown while a revision builds.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/slidesmith-dev/slidesmith/internal/validate"
)

// ProgressDisplay reports validation phases. On a terminal it redraws a
// single status line in place; otherwise it prints one line per phase.
type ProgressDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	isTTY   bool
	maxAtt  int
	started time.Time
	phase   validate.Phase
	attempt int
	drawn   bool
}

// NewProgressDisplay creates a ProgressDisplay writing to stderr.
// maxAttempts is only used for display.
func NewProgressDisplay(maxAttempts int) *ProgressDisplay {
	return &ProgressDisplay{
		out:    os.Stderr,
		isTTY:  term.IsTerminal(int(os.Stderr.Fd())),
		maxAtt: maxAttempts,
	}
}

// NewPlainProgress creates a non-TTY ProgressDisplay writing to w.
func NewPlainProgress(w io.Writer, maxAttempts int) *ProgressDisplay {
	return &ProgressDisplay{out: w, maxAtt: maxAttempts}
}

// Update records a phase change. Its signature matches the workflow
// progress callback.
func (p *ProgressDisplay) Update(sessionID string, phase validate.Phase, attempt int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if phase == p.phase && attempt == p.attempt {
		return
	}
	if p.started.IsZero() || phase == validate.PhaseCompiling && attempt == 1 {
		p.started = time.Now()
	}
	p.phase = phase
	p.attempt = attempt

	line := p.format(sessionID)
	if !p.isTTY {
		fmt.Fprintln(p.out, line)
		return
	}
	fmt.Fprintf(p.out, "\r\033[2K%s", line)
	p.drawn = true
	if phase == validate.PhaseCompiled || phase == validate.PhaseFailed {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}

// Finish ends an unfinished in-place line.
func (p *ProgressDisplay) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isTTY && p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}

func (p *ProgressDisplay) format(sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	elapsed := formatDuration(time.Since(p.started))
	if !p.isTTY {
		return fmt.Sprintf("[%s] %s: %s", phaseLabel(p.phase), short, p.detail(elapsed))
	}
	return fmt.Sprintf("  %s %s  %s", phaseIcon(p.phase), short, p.detail(elapsed))
}

func (p *ProgressDisplay) detail(elapsed string) string {
	switch p.phase {
	case validate.PhaseCompiling:
		return fmt.Sprintf("compiling (attempt %d/%d, %s)", p.attempt, p.maxAtt, elapsed)
	case validate.PhaseRepairing:
		return fmt.Sprintf("repairing after attempt %d (%s)", p.attempt, elapsed)
	case validate.PhaseCompiled:
		return fmt.Sprintf("compiled in %d attempt(s) [%s]", p.attempt, elapsed)
	case validate.PhaseFailed:
		return fmt.Sprintf("failed after %d attempt(s) [%s]", p.attempt, elapsed)
	default:
		return string(p.phase)
	}
}

func phaseLabel(ph validate.Phase) string {
	switch ph {
	case validate.PhaseCompiling:
		return "COMPILING"
	case validate.PhaseRepairing:
		return "REPAIRING"
	case validate.PhaseCompiled:
		return "DONE"
	case validate.PhaseFailed:
		return "FAILED"
	default:
		return "PENDING"
	}
}

func phaseIcon(ph validate.Phase) string {
	switch ph {
	case validate.PhaseCompiled:
		return "\033[32m✅\033[0m" // green checkmark
	case validate.PhaseCompiling, validate.PhaseRepairing:
		return "\033[33m⏳\033[0m" // yellow hourglass
	case validate.PhaseFailed:
		return "\033[31m❌\033[0m" // red X
	default:
		return "\033[90m○\033[0m" // dim circle
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
