// review.go implements the "slidesmith review" interactive loop.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/slidesmith-dev/slidesmith/internal/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review SESSION",
	Short: "Revise a deck interactively, one round of feedback at a time",
	Long: `Open an interactive review screen for a session. Each line of input
is applied as feedback; "rollback N" restores revision N and "quit" exits.
Without a terminal, a plain prompt reads lines from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func runReview(cmd *cobra.Command, args []string) error {
	interactive := tui.IsTTY()
	if interactive {
		// The review screen owns the terminal.
		quiet = true
	}
	proj, err := openProject()
	if err != nil {
		return err
	}
	defer proj.close()

	ctx := cmd.Context()
	id, err := resolveSession(ctx, proj.svc, args[0])
	if err != nil {
		return err
	}
	sess, err := proj.svc.Session(ctx, id)
	if err != nil {
		return err
	}

	if interactive {
		return tui.Run(tui.NewModel(ctx, proj.svc, id, sess.Title))
	}
	r := &tui.FallbackRunner{Session: proj.svc, SessionID: id, In: os.Stdin, Out: os.Stdout}
	return r.Run(ctx)
}
