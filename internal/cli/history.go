// history.go implements the "slidesmith history" and "diff" commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slidesmith-dev/slidesmith/internal/compiler"
	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/diff"
	"github.com/slidesmith-dev/slidesmith/internal/tui"
)

var historyCmd = &cobra.Command{
	Use:   "history SESSION",
	Short: "Show every revision of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var diffCmd = &cobra.Command{
	Use:   "diff SESSION FROM TO",
	Short: "Show the source changes between two revisions",
	Args:  cobra.ExactArgs(3),
	RunE:  runDiff,
}

var historyAttempts bool

func init() {
	historyCmd.Flags().BoolVar(&historyAttempts, "attempts", false, "List compile attempts under each revision")
}

func runHistory(cmd *cobra.Command, args []string) error {
	quiet = true
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
	revs, err := proj.svc.History(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s\n\n", sess.ID, sess.Title)
	for i, r := range revs {
		line := tui.RevisionLine(r)
		if i > 0 && r.Origin == deck.OriginRevise && r.BaseRevision >= 0 && r.BaseRevision < len(revs) {
			line += fmt.Sprintf("  (%s)", diff.Count(revs[r.BaseRevision].Text, r.Text))
		}
		fmt.Println("  " + line)

		if !historyAttempts {
			continue
		}
		attempts, err := proj.svc.Attempts(ctx, id, r.Revision)
		if err != nil {
			return err
		}
		for _, a := range attempts {
			detail := ""
			if a.Outcome == deck.OutcomeError {
				detail = compiler.ParseDiagnostics(a.Diagnostics).Headline()
			}
			fmt.Printf("        attempt %d  %-5s  %5dms  %s\n", a.Number, a.Outcome, a.DurationMs, detail)
		}
	}
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	from, err := parseRevision(args[1])
	if err != nil {
		return err
	}
	to, err := parseRevision(args[2])
	if err != nil {
		return err
	}
	quiet = true
	proj, err := openProject()
	if err != nil {
		return err
	}
	defer proj.close()

	id, err := resolveSession(cmd.Context(), proj.svc, args[0])
	if err != nil {
		return err
	}
	out, err := proj.svc.Diff(cmd.Context(), id, from, to)
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Println("No changes.")
		return nil
	}
	fmt.Print(out)
	return nil
}
