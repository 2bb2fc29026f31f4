package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/revise"
	"github.com/slidesmith-dev/slidesmith/internal/store"
)

// FallbackRunner runs the review loop as a plain prompt for non-TTY use.
type FallbackRunner struct {
	Session   Session
	SessionID string
	In        io.Reader
	Out       io.Writer
}

// Run reads commands line by line until quit or end of input.
func (f *FallbackRunner) Run(ctx context.Context) error {
	sc := bufio.NewScanner(f.In)
	for {
		fmt.Fprint(f.Out, "feedback> ")
		if !sc.Scan() {
			fmt.Fprintln(f.Out)
			return sc.Err()
		}
		c, err := ParseCommand(sc.Text())
		if err != nil {
			fmt.Fprintf(f.Out, "  %v\n", err)
			continue
		}
		if c.Quit {
			return nil
		}

		var art *store.Artifact
		if c.Rollback >= 0 {
			art, err = f.Session.Rollback(ctx, f.SessionID, c.Rollback)
		} else {
			art, err = f.Session.Revise(ctx, f.SessionID, revise.Request{Feedback: c.Feedback})
		}
		f.report(art, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (f *FallbackRunner) report(art *store.Artifact, err error) {
	switch {
	case art != nil && art.Status == deck.StatusCompiled:
		fmt.Fprintf(f.Out, "  revision %d compiled (%d attempt(s))\n", art.Revision, art.Attempts)
	case art != nil:
		fmt.Fprintf(f.Out, "  revision %d failed: %v\n", art.Revision, err)
		if art.Diagnostics != "" {
			fmt.Fprintf(f.Out, "  %s\n", firstLine(art.Diagnostics))
		}
	case err != nil:
		fmt.Fprintf(f.Out, "  no revision created: %v\n", err)
	}
}
